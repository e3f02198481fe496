// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"gatehouse/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by the seeder and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	return &Factory{db: db, opts: opts, nextID: 1000}
}

// CreateUser constructs and persists a sample user with the given role.
func (f *Factory) CreateUser(role models.Role) (*models.User, error) {
	user := &models.User{
		Username: gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:    gofakeit.Email(),
		Role:     role,
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s (%s)", user.Username, user.Role)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildDraft constructs a draft post for the author without persisting it.
func (f *Factory) BuildDraft(author *models.User) *models.Post {
	post := &models.Post{
		AuthorID: author.ID,
		Category: categories[rand.Intn(len(categories))],
		Title:    gofakeit.Sentence(6),
		Body:     gofakeit.Paragraph(2, 4, 10, "\n\n"),
		Status:   models.StatusDraft,
	}

	// realistic created_at spread
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	daysBack := rand.Intn(maxDays)
	hoursBack := rand.Intn(24)
	minsBack := rand.Intn(60)
	post.CreatedAt = time.Now().Add(-time.Duration(daysBack)*24*time.Hour -
		time.Duration(hoursBack)*time.Hour - time.Duration(minsBack)*time.Minute)

	return post
}

// CreateDraft constructs and persists a draft post for the author.
func (f *Factory) CreateDraft(author *models.User) (*models.Post, error) {
	post := f.BuildDraft(author)

	if f.opts.DryRun {
		f.nextID++
		post.ID = f.nextID
		return post, nil
	}

	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// Submit moves a draft to pending on behalf of its author.
func (f *Factory) Submit(post *models.Post) error {
	return f.recordTransition(post, models.StatusPending, post.AuthorID, models.RoleMember, nil)
}

// Approve moves a pending post to approved on behalf of a moderator.
func (f *Factory) Approve(post *models.Post, moderator *models.User) error {
	return f.recordTransition(post, models.StatusApproved, moderator.ID, moderator.Role, nil)
}

// Reject moves a pending post to rejected with the moderator's notes.
func (f *Factory) Reject(post *models.Post, moderator *models.User, notes string) error {
	return f.recordTransition(post, models.StatusRejected, moderator.ID, moderator.Role, &notes)
}

// Resubmit moves a rejected post back to pending, clearing the review notes.
func (f *Factory) Resubmit(post *models.Post) error {
	return f.recordTransition(post, models.StatusPending, post.AuthorID, models.RoleMember, nil)
}

// recordTransition appends a moderation event and updates the post the way
// the live transition path does, with timestamps that advance past the
// previous transition so per-post history stays ordered.
func (f *Factory) recordTransition(post *models.Post, to models.PostStatus, actorID uint, actorRole models.Role, notes *string) error {
	from := post.Status
	at := post.CreatedAt
	if post.LastTransitionAt != nil {
		at = *post.LastTransitionAt
	}
	at = at.Add(time.Duration(1+rand.Intn(360)) * time.Minute)

	event := &models.ModerationEvent{
		PostID:     post.ID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		ActorRole:  actorRole,
		Notes:      notes,
		CreatedAt:  at,
	}

	post.Status = to
	post.LastTransitionAt = &at
	switch {
	case to == models.StatusRejected && notes != nil:
		post.ReviewNotes = *notes
		post.LastModeratorID = &actorID
	case to == models.StatusApproved:
		post.ReviewNotes = ""
		post.LastModeratorID = &actorID
	default:
		// submissions and resubmissions come from the author
		post.ReviewNotes = ""
	}

	if f.opts.DryRun {
		log.Printf("[dry-run] transition post %d: %s -> %s", post.ID, from, to)
		return nil
	}

	if err := f.db.Create(event).Error; err != nil {
		return err
	}
	return f.db.Model(&models.Post{}).Where("id = ?", post.ID).Updates(map[string]interface{}{
		"status":             post.Status,
		"review_notes":       post.ReviewNotes,
		"last_transition_at": post.LastTransitionAt,
		"last_moderator_id":  post.LastModeratorID,
	}).Error
}
