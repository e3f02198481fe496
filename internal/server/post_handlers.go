// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"gatehouse/internal/models"
	"gatehouse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts. New posts always start in draft.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID, _ := identity(c)

	var req struct {
		Title    string `json:"title"`
		Body     string `json:"body"`
		Category string `json:"category"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.CreateDraft(c.Context(), service.CreatePostInput{
		AuthorID: userID,
		Title:    req.Title,
		Body:     req.Body,
		Category: req.Category,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPosts handles GET /api/posts. Only approved posts are listed publicly.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	category := c.Query("category")

	posts, err := s.postService.ListApproved(c.Context(), category, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(posts)
}

// GetMyPosts handles GET /api/posts/mine, listing the caller's posts in every
// status.
func (s *Server) GetMyPosts(c *fiber.Ctx) error {
	userID, _ := identity(c)
	page := parsePagination(c, 20)

	posts, err := s.postService.ListMine(c.Context(), userID, page.Limit, page.Offset)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id. Authentication is optional: anonymous
// viewers see approved posts only, authors see their own drafts, moderators
// see everything.
func (s *Server) GetPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	viewerID, viewerRole, _ := s.optionalIdentity(c)

	post, err := s.postService.GetPost(c.Context(), postID, viewerID, viewerRole)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id. Content edits go through the draft
// path; posts under review or already decided cannot be edited in place.
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	userID, _ := identity(c)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Title    *string `json:"title"`
		Body     *string `json:"body"`
		Category *string `json:"category"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.UpdateDraft(c.Context(), service.UpdatePostInput{
		ActorID:  userID,
		PostID:   postID,
		Title:    req.Title,
		Body:     req.Body,
		Category: req.Category,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	userID, role := identity(c)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.Context(), postID, userID, role); err != nil {
		return respondServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
