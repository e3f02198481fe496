// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"gatehouse/internal/middleware"
	"gatehouse/internal/models"
	"gatehouse/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const wsTicketTTL = 60 * time.Second

// IssueWSTicket handles POST /api/ws/ticket. Browsers cannot set headers on
// the websocket upgrade, so authenticated clients exchange their JWT for a
// short-lived single-use ticket carried as a query parameter.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fmt.Errorf("ticket store unavailable")))
	}

	userID, role := identity(c)
	ticket := uuid.NewString()

	// The role rides along in the ticket value so the upgrade request does
	// not need a second token parse.
	value := fmt.Sprintf("%d:%s", userID, role)
	key := fmt.Sprintf("ws_ticket:%s", ticket)
	if err := s.redis.Set(c.Context(), key, value, wsTicketTTL).Err(); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

// checkRequest is the inbound shape for a debounced violation check.
type checkRequest struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

// WebsocketHandler handles WebSocket connections for moderation notifications
// and live pre-submission checks.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx := context.Background()

		// Get identity from context locals (set by AuthRequired middleware)
		userIDVal := conn.Locals("userID")
		if userIDVal == nil {
			log.Printf("WebSocket: Unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		userID := userIDVal.(uint)
		role, _ := conn.Locals("userRole").(models.Role)
		if !role.Valid() {
			role = models.RoleMember
		}

		client, err := s.hub.Register(userID, role, conn)
		if err != nil {
			log.Printf("WebSocket: Failed to register user %d: %v", userID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		// Connection-scoped id keys this connection's debounce sessions.
		connID := uuid.NewString()
		s.checkClients.Store(connID, client)
		sessions := map[string]struct{}{}

		client.IncomingHandler = func(c *notifications.Client, message []byte) {
			var req checkRequest
			if err := json.Unmarshal(message, &req); err != nil {
				log.Printf("WebSocket: Invalid message format from user %d", userID)
				return
			}

			switch req.Type {
			case "content_check":
				if req.Session == "" {
					return
				}

				id := fmt.Sprintf("user:%d", userID)
				allowed, _ := middleware.CheckRateLimit(ctx, s.redis, "content_check", id, 30, time.Minute)
				if !allowed {
					resp, _ := json.Marshal(fiber.Map{
						"type":    "content_check_error",
						"session": req.Session,
						"error":   "Rate limit exceeded. Please wait a moment.",
					})
					c.TrySend(resp)
					return
				}

				sessions[req.Session] = struct{}{}
				s.debouncer.Edit(checkSessionKey(connID, req.Session), req.Title, req.Body, true)

			case "content_check_cancel":
				if req.Session == "" {
					return
				}
				delete(sessions, req.Session)
				s.debouncer.Cancel(checkSessionKey(connID, req.Session))

			case "notifications_read":
				if s.notifier != nil {
					if err := s.notifier.ClearUnread(ctx, userID); err != nil {
						log.Printf("clear unread error for user %d: %v", userID, err)
					}
				}
			}
		}

		// Send welcome message with the unread count accumulated while offline
		var unread int64
		if s.notifier != nil {
			if n, err := s.notifier.UnreadCount(ctx, userID); err == nil {
				unread = n
			}
		}
		welcome, err := json.Marshal(fiber.Map{
			"type": "connected",
			"payload": fiber.Map{
				"user_id": userID,
				"role":    string(role),
				"unread":  unread,
			},
		})
		if err == nil {
			client.TrySend(welcome)
		}

		// Start write pump in a goroutine
		go client.WritePump()

		// Read pump runs in the main handler goroutine (blocking)
		client.ReadPump()

		// Teardown: drop pending checks owned by this connection.
		s.checkClients.Delete(connID)
		for session := range sessions {
			s.debouncer.Cancel(checkSessionKey(connID, session))
		}
	})
}

// checkSessionKey namespaces a client-chosen session id by connection so two
// tabs editing the same draft debounce independently.
func checkSessionKey(connID, session string) string {
	return connID + "|" + session
}

// deliverCheckResult routes a settled debounced check back to the websocket
// connection that requested it. Results for connections that have since
// closed are dropped.
func (s *Server) deliverCheckResult(sessionKey string, check *models.ViolationCheck, err error) {
	connID, session, ok := cutSessionKey(sessionKey)
	if !ok {
		return
	}
	v, loaded := s.checkClients.Load(connID)
	if !loaded {
		return
	}
	client := v.(*notifications.Client)

	var payload []byte
	if err != nil {
		// Indeterminate, not clean. The client should keep the submit gate up.
		payload, _ = json.Marshal(fiber.Map{
			"type":    "content_check_error",
			"session": session,
			"error":   "Content analysis is temporarily unavailable",
		})
	} else {
		payload, _ = json.Marshal(fiber.Map{
			"type":    "content_check_result",
			"session": session,
			"check":   check,
		})
	}
	if payload != nil {
		client.TrySend(payload)
	}
}

func cutSessionKey(sessionKey string) (connID, session string, ok bool) {
	return strings.Cut(sessionKey, "|")
}
