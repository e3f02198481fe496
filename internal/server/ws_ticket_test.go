package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gatehouse/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueWSTicket(t *testing.T) {
	s, app, _ := newTestServer(t)
	user := createUser(t, s, "socketeer", models.RoleModerator)

	resp := doJSON(t, app, http.MethodPost, "/api/ws/ticket", tokenFor(t, s, user), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Ticket    string `json:"ticket"`
		ExpiresIn int    `json:"expires_in"`
	}
	decodeJSON(t, resp, &body)
	require.NotEmpty(t, body.Ticket)
	assert.Equal(t, 60, body.ExpiresIn)

	// The stored value carries the identity and role for the upgrade request.
	value, err := s.redis.Get(context.Background(), "ws_ticket:"+body.Ticket).Result()
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d:moderator", user.ID), value)
}

func TestAuthRequired_WSTicket(t *testing.T) {
	s, _, mr := newTestServer(t)

	app := fiber.New()
	app.Get("/api/ws/test", s.AuthRequired(), func(c *fiber.Ctx) error {
		userID, role := identity(c)
		return c.JSON(fiber.Map{"userID": userID, "role": string(role)})
	})

	seed := func(ticket, value string) {
		mr.Set("ws_ticket:"+ticket, value)
		mr.SetTTL("ws_ticket:"+ticket, wsTicketTTL)
	}

	t.Run("Valid Ticket Is Single Use", func(t *testing.T) {
		seed("tik-1", "42:moderator")

		req := httptest.NewRequest(http.MethodGet, "/api/ws/test?ticket=tik-1", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		// Consumed atomically: the second use fails.
		assert.False(t, mr.Exists("ws_ticket:tik-1"))
		req = httptest.NewRequest(http.MethodGet, "/api/ws/test?ticket=tik-1", nil)
		resp, err = app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Unknown Ticket Rejected On WS Path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/ws/test?ticket=nope", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Token In Query Rejected On WS Path", func(t *testing.T) {
		user := createUser(t, s, "sneaky", models.RoleMember)
		req := httptest.NewRequest(http.MethodGet, "/api/ws/test?token="+tokenFor(t, s, user), nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Malformed Ticket Value Falls Through", func(t *testing.T) {
		seed("tik-2", "not-a-user-id")
		req := httptest.NewRequest(http.MethodGet, "/api/ws/test?ticket=tik-2", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAuthRequired_TokenValidation(t *testing.T) {
	s, app, _ := newTestServer(t)
	user := createUser(t, s, "tokenuser", models.RoleMember)

	t.Run("Wrong Issuer Rejected", func(t *testing.T) {
		// A token signed with the right secret but minted by another service.
		claims := jwt.MapClaims{
			"sub": fmt.Sprintf("%d", user.ID),
			"iss": "someone-else",
			"aud": tokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
			SignedString([]byte(s.config.JWTSecret))
		require.NoError(t, err)

		resp := doJSON(t, app, http.MethodGet, "/api/users/me", token, nil)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Valid Token Accepted", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodGet, "/api/users/me", tokenFor(t, s, user), nil)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Garbage Token Rejected", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodGet, "/api/users/me", "garbage.token.here", nil)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Missing Token Rejected", func(t *testing.T) {
		resp := doJSON(t, app, http.MethodGet, "/api/users/me", "", nil)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
