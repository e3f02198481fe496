package service

import (
	"context"
	"strings"

	"gatehouse/internal/models"
	"gatehouse/internal/repository"
)

type PostService struct {
	postRepo repository.PostRepository
}

type CreatePostInput struct {
	AuthorID uint
	Title    string
	Body     string
	Category string
}

type UpdatePostInput struct {
	ActorID  uint
	PostID   uint
	Title    *string
	Body     *string
	Category *string
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{postRepo: postRepo}
}

const (
	maxTitleLen = 300
	maxBodyLen  = 50000
)

// CreateDraft creates a new post in draft. Submission limits are not applied
// here; the floor check runs on submit so authors can save partial drafts.
func (s *PostService) CreateDraft(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, models.NewValidationError("Title is required")
	}
	if len(in.Title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 300 characters)")
	}
	if len(in.Body) > maxBodyLen {
		return nil, models.NewValidationError("Body too long (max 50000 characters)")
	}

	post := &models.Post{
		AuthorID: in.AuthorID,
		Title:    strings.TrimSpace(in.Title),
		Body:     in.Body,
		Category: strings.TrimSpace(in.Category),
		Status:   models.StatusDraft,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

// GetPost applies visibility: approved posts are public; everything else is
// visible only to the author and the review audience.
func (s *PostService) GetPost(ctx context.Context, postID, viewerID uint, viewerRole models.Role) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.StatusApproved && post.AuthorID != viewerID && !viewerRole.CanModerate() {
		// Hide the post's existence, not just its content.
		return nil, models.NewNotFoundError("Post", postID)
	}
	return post, nil
}

// ListApproved returns the public feed, optionally filtered by category.
func (s *PostService) ListApproved(ctx context.Context, category string, limit, offset int) ([]*models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.postRepo.ListApproved(ctx, category, limit, offset)
}

// ListMine returns all of the author's posts regardless of status.
func (s *PostService) ListMine(ctx context.Context, authorID uint, limit, offset int) ([]*models.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.postRepo.ListByAuthor(ctx, authorID, limit, offset)
}

// UpdateDraft edits title/body/category. Only the author may edit, and only
// while the post is in draft; content under review or published is immutable
// outside the transition path.
func (s *PostService) UpdateDraft(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != in.ActorID {
		return nil, models.NewForbiddenError("Only the author may edit a post")
	}
	if post.Status != models.StatusDraft {
		return nil, models.NewForbiddenError("Only draft posts can be edited directly; resubmit rejected posts instead")
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, models.NewValidationError("Title is required")
		}
		if len(title) > maxTitleLen {
			return nil, models.NewValidationError("Title too long (max 300 characters)")
		}
		post.Title = title
	}
	if in.Body != nil {
		if len(*in.Body) > maxBodyLen {
			return nil, models.NewValidationError("Body too long (max 50000 characters)")
		}
		post.Body = *in.Body
	}
	if in.Category != nil {
		post.Category = strings.TrimSpace(*in.Category)
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post. Authors may delete their own drafts and rejected
// posts; admins may delete anything.
func (s *PostService) DeletePost(ctx context.Context, postID, actorID uint, actorRole models.Role) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if actorRole != models.RoleAdmin {
		if post.AuthorID != actorID {
			return models.NewForbiddenError("Only the author may delete a post")
		}
		if post.Status == models.StatusPending || post.Status == models.StatusApproved {
			return models.NewForbiddenError("Posts under review or published can only be removed by an admin")
		}
	}
	return s.postRepo.Delete(ctx, postID)
}
