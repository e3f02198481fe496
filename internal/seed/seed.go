// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"gatehouse/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
	// SkipBcrypt stores a plaintext marker password instead of a real hash.
	// Much faster for large seeds; development only.
	SkipBcrypt bool
	// DryRun builds entities without writing to the database.
	DryRun bool
	// MaxDays spreads created_at timestamps over the past N days.
	MaxDays int
}

var categories = []string{
	"announcements", "guides", "reviews", "opinion", "questions",
	"show-and-tell", "news", "meta",
}

// rejectionNotes are the canned review notes attached to rejected posts.
// Every rejection carries notes so the author knows what to fix.
var rejectionNotes = []string{
	"Title is misleading relative to the body. Please rework it.",
	"This reads like an advertisement. Remove the promotional links.",
	"Body is too thin for this category. Add detail before resubmitting.",
	"Duplicate of an already-approved post. Link to it instead.",
	"Tone violates the community guidelines. Please rephrase.",
	"Unsourced claims throughout. Cite where this comes from.",
}

// statusDistribution is the share of seeded posts left in each state.
type statusDistribution struct {
	Draft    float64
	Pending  float64
	Approved float64
	Rejected float64
}

var defaultStatusDistribution = statusDistribution{
	Draft:    0.2,
	Pending:  0.25,
	Approved: 0.4,
	Rejected: 0.15,
}

// computeStatusCounts turns a distribution into integer counts that sum to
// total. Rounding leftovers go to approved, the most common terminal state.
func computeStatusCounts(total int, d statusDistribution) (draft, pending, approved, rejected int) {
	draft = int(float64(total) * d.Draft)
	pending = int(float64(total) * d.Pending)
	rejected = int(float64(total) * d.Rejected)
	approved = total - draft - pending - rejected
	return draft, pending, approved, rejected
}

// Seed populates the database with users and posts in every moderation state,
// with a consistent transition history behind each one.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)
	gofakeit.Seed(time.Now().UnixNano())

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	f := NewFactory(db, opts)

	users, err := createUsers(f, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	if err := createPosts(f, users, opts.NumPosts); err != nil {
		return fmt.Errorf("seed posts: %w", err)
	}

	log.Println("Database seeding complete.")
	return nil
}

// clearData removes seeded rows in FK order.
func clearData(db *gorm.DB) error {
	for _, model := range []interface{}{
		&models.ModerationEvent{},
		&models.Post{},
		&models.User{},
	} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

// createUsers seeds one admin, roughly one moderator per ten users, and
// members for the rest.
func createUsers(f *Factory, count int) (*seededUsers, error) {
	if count < 3 {
		count = 3
	}
	numModerators := count / 10
	if numModerators < 1 {
		numModerators = 1
	}

	out := &seededUsers{}

	admin, err := f.CreateUser(models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	out.Admins = append(out.Admins, admin)

	for i := 0; i < numModerators; i++ {
		mod, err := f.CreateUser(models.RoleModerator)
		if err != nil {
			return nil, err
		}
		out.Moderators = append(out.Moderators, mod)
	}

	for i := 0; i < count-1-numModerators; i++ {
		member, err := f.CreateUser(models.RoleMember)
		if err != nil {
			return nil, err
		}
		out.Members = append(out.Members, member)
	}

	log.Printf("Created %d users (%d admins, %d moderators, %d members)",
		count, len(out.Admins), len(out.Moderators), len(out.Members))
	return out, nil
}

type seededUsers struct {
	Admins     []*models.User
	Moderators []*models.User
	Members    []*models.User
}

func (u *seededUsers) randomAuthor() *models.User {
	return u.Members[rand.Intn(len(u.Members))]
}

func (u *seededUsers) randomModerator() *models.User {
	return u.Moderators[rand.Intn(len(u.Moderators))]
}

// createPosts seeds posts across all four moderation states. Every post that
// left draft gets the transition events a real lifecycle would have recorded.
func createPosts(f *Factory, users *seededUsers, count int) error {
	draft, pending, approved, rejected := computeStatusCounts(count, defaultStatusDistribution)

	for i := 0; i < draft; i++ {
		if _, err := f.CreateDraft(users.randomAuthor()); err != nil {
			return err
		}
	}

	for i := 0; i < pending; i++ {
		post, err := f.CreateDraft(users.randomAuthor())
		if err != nil {
			return err
		}
		if err := f.Submit(post); err != nil {
			return err
		}
		// Some pending posts are resubmissions of an earlier rejection.
		if i%3 == 0 {
			if err := f.Reject(post, users.randomModerator(), rejectionNotes[rand.Intn(len(rejectionNotes))]); err != nil {
				return err
			}
			post.Title = "Revised: " + post.Title
			post.Body = post.Body + "\n\n" + gofakeit.Paragraph(1, 3, 8, " ")
			if err := f.Resubmit(post); err != nil {
				return err
			}
		}
	}

	for i := 0; i < approved; i++ {
		post, err := f.CreateDraft(users.randomAuthor())
		if err != nil {
			return err
		}
		if err := f.Submit(post); err != nil {
			return err
		}
		if err := f.Approve(post, users.randomModerator()); err != nil {
			return err
		}
	}

	for i := 0; i < rejected; i++ {
		post, err := f.CreateDraft(users.randomAuthor())
		if err != nil {
			return err
		}
		if err := f.Submit(post); err != nil {
			return err
		}
		if err := f.Reject(post, users.randomModerator(), rejectionNotes[rand.Intn(len(rejectionNotes))]); err != nil {
			return err
		}
	}

	log.Printf("Created %d posts (%d draft, %d pending, %d approved, %d rejected)",
		count, draft, pending, approved, rejected)
	return nil
}
