// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"gatehouse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CheckContent handles POST /api/content/check, the synchronous violation
// check used before submission. Sub-threshold content comes back unevaluated;
// capability failures surface as 503 so the client treats the result as
// indeterminate rather than clean.
func (s *Server) CheckContent(c *fiber.Ctx) error {
	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	check, err := s.coordinator.CheckContent(c.Context(), req.Title, req.Body, true)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(check)
}
