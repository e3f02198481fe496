// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"gatehouse/internal/models"
	"gatehouse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitPost handles POST /api/posts/:id/submit (draft -> pending).
func (s *Server) SubmitPost(c *fiber.Ctx) error {
	return s.requestTransition(c, models.StatusPending, false)
}

// ApprovePost handles POST /api/posts/:id/approve (pending -> approved).
func (s *Server) ApprovePost(c *fiber.Ctx) error {
	return s.requestTransition(c, models.StatusApproved, false)
}

// RejectPost handles POST /api/posts/:id/reject (pending -> rejected).
// Review notes are required; the guard in the moderation service enforces it.
func (s *Server) RejectPost(c *fiber.Ctx) error {
	return s.requestTransition(c, models.StatusRejected, false)
}

// ResubmitPost handles POST /api/posts/:id/resubmit (rejected -> pending).
// The author may revise title, body, and category as part of resubmission.
func (s *Server) ResubmitPost(c *fiber.Ctx) error {
	return s.requestTransition(c, models.StatusPending, true)
}

// requestTransition parses the shared transition request shape and hands it
// to the moderation service, which owns legality, guards, and serialization.
func (s *Server) requestTransition(c *fiber.Ctx, target models.PostStatus, allowContent bool) error {
	userID, role := identity(c)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Notes    string  `json:"notes"`
		Title    *string `json:"title"`
		Body     *string `json:"body"`
		Category *string `json:"category"`
	}
	// Transition requests may have an empty body (e.g. submit, approve).
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	input := service.TransitionRequest{
		PostID:    postID,
		ActorID:   userID,
		ActorRole: role,
		Target:    target,
		Notes:     req.Notes,
	}
	if allowContent {
		input.NewTitle = req.Title
		input.NewBody = req.Body
		input.NewCategory = req.Category
	}

	post, err := s.moderationService.RequestTransition(c.Context(), input)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(post)
}

// GetModerationHistory handles GET /api/posts/:id/history. Authors see their
// own post's log; moderators see any.
func (s *Server) GetModerationHistory(c *fiber.Ctx) error {
	userID, role := identity(c)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	events, err := s.moderationService.History(c.Context(), postID, userID, role)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(events)
}

// GetReviewQueue handles GET /api/moderation/queue, listing pending posts
// oldest first.
func (s *Server) GetReviewQueue(c *fiber.Ctx) error {
	_, role := identity(c)
	page := parsePagination(c, 25)

	posts, err := s.moderationService.ReviewQueue(c.Context(), role, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(posts)
}

// GetRecentModerationEvents handles GET /api/moderation/events, the
// cross-post activity feed for the moderation dashboard.
func (s *Server) GetRecentModerationEvents(c *fiber.Ctx) error {
	page := parsePagination(c, 50)

	events, err := s.eventRepo.ListRecent(c.Context(), page.Limit)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(events)
}
