package seed

import (
	"fmt"
	"testing"

	"gatehouse/internal/database"
	"gatehouse/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSeedDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:seed_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.PersistentModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSeed_PopulatesAllStates(t *testing.T) {
	db := newSeedDB(t)

	opts := Options{NumUsers: 10, NumPosts: 20, SkipBcrypt: true, MaxDays: 14}
	if err := Seed(db, opts); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	var userCount int64
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if userCount != 10 {
		t.Fatalf("expected 10 users, got %d", userCount)
	}

	for _, status := range []models.PostStatus{
		models.StatusDraft, models.StatusPending, models.StatusApproved, models.StatusRejected,
	} {
		var n int64
		if err := db.Model(&models.Post{}).Where("status = ?", status).Count(&n).Error; err != nil {
			t.Fatalf("count %s posts: %v", status, err)
		}
		if n == 0 {
			t.Fatalf("expected at least one %s post", status)
		}
	}

	// Rejected posts keep their review notes; drafts have no events.
	var rejected []models.Post
	if err := db.Where("status = ?", models.StatusRejected).Find(&rejected).Error; err != nil {
		t.Fatalf("load rejected: %v", err)
	}
	for _, p := range rejected {
		if p.ReviewNotes == "" {
			t.Fatalf("rejected post %d has no review notes", p.ID)
		}
	}

	var drafts []models.Post
	if err := db.Where("status = ?", models.StatusDraft).Find(&drafts).Error; err != nil {
		t.Fatalf("load drafts: %v", err)
	}
	for _, p := range drafts {
		var n int64
		if err := db.Model(&models.ModerationEvent{}).Where("post_id = ?", p.ID).Count(&n).Error; err != nil {
			t.Fatalf("count events: %v", err)
		}
		if n != 0 {
			t.Fatalf("draft post %d has %d events", p.ID, n)
		}
	}
}

func TestSeed_EventHistoryIsConsistent(t *testing.T) {
	db := newSeedDB(t)

	if err := Seed(db, Options{NumUsers: 5, NumPosts: 12, SkipBcrypt: true}); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	var posts []models.Post
	if err := db.Where("status <> ?", models.StatusDraft).Find(&posts).Error; err != nil {
		t.Fatalf("load posts: %v", err)
	}

	for _, p := range posts {
		var events []models.ModerationEvent
		if err := db.Where("post_id = ?", p.ID).Order("created_at ASC").Find(&events).Error; err != nil {
			t.Fatalf("load events: %v", err)
		}
		if len(events) == 0 {
			t.Fatalf("post %d in state %s has no events", p.ID, p.Status)
		}

		// The chain starts at draft and each event picks up where the
		// previous one left off; the last event lands on the post's state.
		if events[0].FromStatus != models.StatusDraft {
			t.Fatalf("post %d chain starts at %s", p.ID, events[0].FromStatus)
		}
		for i := 1; i < len(events); i++ {
			if events[i].FromStatus != events[i-1].ToStatus {
				t.Fatalf("post %d chain broken at event %d: %s -> %s after %s",
					p.ID, i, events[i].FromStatus, events[i].ToStatus, events[i-1].ToStatus)
			}
		}
		if events[len(events)-1].ToStatus != p.Status {
			t.Fatalf("post %d chain ends at %s but post is %s",
				p.ID, events[len(events)-1].ToStatus, p.Status)
		}
	}
}

func TestSeed_CleanRemovesPreviousData(t *testing.T) {
	db := newSeedDB(t)

	if err := Seed(db, Options{NumUsers: 4, NumPosts: 8, SkipBcrypt: true}); err != nil {
		t.Fatalf("first Seed failed: %v", err)
	}
	if err := Seed(db, Options{NumUsers: 4, NumPosts: 8, SkipBcrypt: true, ShouldClean: true}); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}

	var userCount int64
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if userCount != 4 {
		t.Fatalf("expected clean reseed to leave 4 users, got %d", userCount)
	}
}
