package server

import (
	"context"
	"net/http"
	"testing"

	"gatehouse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnreadCounter(t *testing.T) {
	s, app, _ := newTestServer(t)
	user := createUser(t, s, "reader", models.RoleMember)
	token := tokenFor(t, s, user)

	var body struct {
		Unread int64 `json:"unread"`
	}

	resp := doJSON(t, app, http.MethodGet, "/api/notifications/unread", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.Equal(t, int64(0), body.Unread)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.notifier.IncrementUnread(context.Background(), user.ID))
	}

	resp = doJSON(t, app, http.MethodGet, "/api/notifications/unread", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.Equal(t, int64(3), body.Unread)

	resp = doJSON(t, app, http.MethodPost, "/api/notifications/read", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.Equal(t, int64(0), body.Unread)

	resp = doJSON(t, app, http.MethodGet, "/api/notifications/unread", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.Equal(t, int64(0), body.Unread)
}

func TestUnreadCounter_RequiresAuth(t *testing.T) {
	_, app, _ := newTestServer(t)

	resp := doJSON(t, app, http.MethodGet, "/api/notifications/unread", "", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
