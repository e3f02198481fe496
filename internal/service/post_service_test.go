package service

import (
	"context"
	"strings"
	"testing"

	"gatehouse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostService_CreateDraft(t *testing.T) {
	t.Parallel()
	repo := newMemPostRepo()
	svc := NewPostService(repo)
	ctx := context.Background()

	t.Run("creates in draft", func(t *testing.T) {
		post, err := svc.CreateDraft(ctx, CreatePostInput{
			AuthorID: 1, Title: "Hello", Body: "short is fine for a draft", Category: "general",
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusDraft, post.Status)
		assert.Equal(t, uint(1), post.AuthorID)
	})

	t.Run("title required", func(t *testing.T) {
		_, err := svc.CreateDraft(ctx, CreatePostInput{AuthorID: 1, Title: "   ", Body: "x"})
		assertValidationError(t, err)
	})

	t.Run("title too long", func(t *testing.T) {
		_, err := svc.CreateDraft(ctx, CreatePostInput{AuthorID: 1, Title: strings.Repeat("x", 301)})
		assertValidationError(t, err)
	})
}

func TestPostService_GetPostVisibility(t *testing.T) {
	t.Parallel()
	repo := newMemPostRepo()
	svc := NewPostService(repo)
	ctx := context.Background()

	pending := seedPost(t, repo, 1, models.StatusPending)
	approved := seedPost(t, repo, 1, models.StatusApproved)

	// Pending: author and moderators only; strangers get NotFound.
	_, err := svc.GetPost(ctx, pending.ID, 1, models.RoleMember)
	assert.NoError(t, err)
	_, err = svc.GetPost(ctx, pending.ID, 2, models.RoleModerator)
	assert.NoError(t, err)
	_, err = svc.GetPost(ctx, pending.ID, 2, models.RoleMember)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Approved: public.
	_, err = svc.GetPost(ctx, approved.ID, 2, models.RoleMember)
	assert.NoError(t, err)
}

func TestPostService_UpdateDraft(t *testing.T) {
	t.Parallel()
	repo := newMemPostRepo()
	svc := NewPostService(repo)
	ctx := context.Background()

	t.Run("author edits draft", func(t *testing.T) {
		post := seedPost(t, repo, 1, models.StatusDraft)
		title := "Updated title"
		updated, err := svc.UpdateDraft(ctx, UpdatePostInput{ActorID: 1, PostID: post.ID, Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Updated title", updated.Title)
	})

	t.Run("non-author forbidden", func(t *testing.T) {
		post := seedPost(t, repo, 1, models.StatusDraft)
		title := "x"
		_, err := svc.UpdateDraft(ctx, UpdatePostInput{ActorID: 2, PostID: post.ID, Title: &title})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("pending content is immutable", func(t *testing.T) {
		post := seedPost(t, repo, 1, models.StatusPending)
		title := "sneaky edit"
		_, err := svc.UpdateDraft(ctx, UpdatePostInput{ActorID: 1, PostID: post.ID, Title: &title})
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestPostService_DeletePost(t *testing.T) {
	t.Parallel()
	repo := newMemPostRepo()
	svc := NewPostService(repo)
	ctx := context.Background()

	t.Run("author deletes own draft", func(t *testing.T) {
		post := seedPost(t, repo, 1, models.StatusDraft)
		assert.NoError(t, svc.DeletePost(ctx, post.ID, 1, models.RoleMember))
	})

	t.Run("author cannot delete pending", func(t *testing.T) {
		post := seedPost(t, repo, 1, models.StatusPending)
		assert.ErrorIs(t, svc.DeletePost(ctx, post.ID, 1, models.RoleMember), models.ErrForbidden)
	})

	t.Run("admin deletes anything", func(t *testing.T) {
		post := seedPost(t, repo, 1, models.StatusApproved)
		assert.NoError(t, svc.DeletePost(ctx, post.ID, 99, models.RoleAdmin))
	})
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}
