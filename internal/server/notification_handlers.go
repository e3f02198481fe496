package server

import (
	"github.com/gofiber/fiber/v2"

	"gatehouse/internal/models"
)

// GetUnreadCount returns the caller's unread notification counter.
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	userID, _ := identity(c)

	if s.notifier == nil {
		// No redis means no counters; an empty inbox, not an error.
		return c.JSON(fiber.Map{"unread": 0})
	}

	count, err := s.notifier.UnreadCount(c.Context(), userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"unread": count})
}

// MarkNotificationsRead resets the caller's unread counter.
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	userID, _ := identity(c)

	if s.notifier != nil {
		if err := s.notifier.ClearUnread(c.Context(), userID); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		}
	}
	return c.JSON(fiber.Map{"unread": 0})
}
