package repository

import (
	"context"
	"regexp"
	"testing"

	"gatehouse/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// The status transition must be conditional on the expected current status.
// A stale request (zero rows updated) rolls back and reports a conflict
// without writing a moderation log entry.
func TestPostRepository_TransitionStaleStatusRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "posts" SET .+ WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), StatusTransition{
		PostID:    9,
		From:      models.StatusPending,
		To:        models.StatusApproved,
		ActorID:   3,
		ActorRole: models.RoleModerator,
	})
	require.ErrorIs(t, err, models.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_TransitionWritesLogEntry(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "posts" SET .+ WHERE id = \$\d+ AND status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "moderation_events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	// Reload after commit.
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "author_id", "status"}).AddRow(9, 5, "approved"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(5, "author"))

	post, err := repo.Transition(context.Background(), StatusTransition{
		PostID:    9,
		From:      models.StatusPending,
		To:        models.StatusApproved,
		ActorID:   3,
		ActorRole: models.RoleModerator,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, post.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
