package server

import (
	"net/http"
	"testing"

	"gatehouse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedPost inserts a post directly in the given status.
func seedPost(t *testing.T, s *Server, authorID uint, status models.PostStatus, title string) *models.Post {
	t.Helper()
	post := &models.Post{
		AuthorID: authorID,
		Title:    title,
		Body:     "a body long enough to clear the submission floor",
		Category: "general",
		Status:   status,
	}
	require.NoError(t, s.db.Create(post).Error)
	return post
}

func TestCreatePost_StartsAsDraft(t *testing.T) {
	s, app, _ := newTestServer(t)
	author := createUser(t, s, "author", models.RoleMember)
	token := tokenFor(t, s, author)

	resp := doJSON(t, app, http.MethodPost, "/api/posts", token, map[string]string{
		"title":    "My first post",
		"body":     "some content that will be reviewed later",
		"category": "general",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var post models.Post
	decodeJSON(t, resp, &post)
	assert.Equal(t, models.StatusDraft, post.Status)
	assert.Equal(t, author.ID, post.AuthorID)
}

func TestCreatePost_RequiresTitle(t *testing.T) {
	s, app, _ := newTestServer(t)
	token := tokenFor(t, s, createUser(t, s, "author", models.RoleMember))

	resp := doJSON(t, app, http.MethodPost, "/api/posts", token, map[string]string{
		"title": "   ",
		"body":  "body without a title",
	})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetPosts_ListsOnlyApproved(t *testing.T) {
	s, app, _ := newTestServer(t)
	author := createUser(t, s, "author", models.RoleMember)
	seedPost(t, s, author.ID, models.StatusApproved, "published")
	seedPost(t, s, author.ID, models.StatusPending, "under review")
	seedPost(t, s, author.ID, models.StatusDraft, "still drafting")

	resp := doJSON(t, app, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var posts []models.Post
	decodeJSON(t, resp, &posts)
	require.Len(t, posts, 1)
	assert.Equal(t, "published", posts[0].Title)
}

func TestGetPost_Visibility(t *testing.T) {
	s, app, _ := newTestServer(t)
	author := createUser(t, s, "author", models.RoleMember)
	stranger := createUser(t, s, "stranger", models.RoleMember)
	moderator := createUser(t, s, "mod", models.RoleModerator)
	seedPost(t, s, author.ID, models.StatusDraft, "private draft")

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{"Anonymous Gets 404", "", http.StatusNotFound},
		{"Stranger Gets 404", tokenFor(t, s, stranger), http.StatusNotFound},
		{"Author Sees Own Draft", tokenFor(t, s, author), http.StatusOK},
		{"Moderator Sees Draft", tokenFor(t, s, moderator), http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, app, http.MethodGet, "/api/posts/1", tt.token, nil)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}
}

func TestGetMyPosts_AllStatuses(t *testing.T) {
	s, app, _ := newTestServer(t)
	author := createUser(t, s, "author", models.RoleMember)
	other := createUser(t, s, "other", models.RoleMember)
	seedPost(t, s, author.ID, models.StatusDraft, "mine draft")
	seedPost(t, s, author.ID, models.StatusRejected, "mine rejected")
	seedPost(t, s, other.ID, models.StatusApproved, "not mine")

	resp := doJSON(t, app, http.MethodGet, "/api/posts/mine", tokenFor(t, s, author), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var posts []models.Post
	decodeJSON(t, resp, &posts)
	assert.Len(t, posts, 2)
	for _, p := range posts {
		assert.Equal(t, author.ID, p.AuthorID)
	}
}

func TestUpdatePost_OnlyDrafts(t *testing.T) {
	s, app, _ := newTestServer(t)
	author := createUser(t, s, "author", models.RoleMember)
	token := tokenFor(t, s, author)
	seedPost(t, s, author.ID, models.StatusDraft, "editable")
	seedPost(t, s, author.ID, models.StatusPending, "locked")

	resp := doJSON(t, app, http.MethodPut, "/api/posts/1", token, map[string]string{
		"title": "edited title",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var post models.Post
	decodeJSON(t, resp, &post)
	assert.Equal(t, "edited title", post.Title)

	// A post under review is immutable outside the transition path.
	resp = doJSON(t, app, http.MethodPut, "/api/posts/2", token, map[string]string{
		"title": "sneaky edit",
	})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUpdatePost_NotTheAuthor(t *testing.T) {
	s, app, _ := newTestServer(t)
	author := createUser(t, s, "author", models.RoleMember)
	intruder := createUser(t, s, "intruder", models.RoleMember)
	seedPost(t, s, author.ID, models.StatusDraft, "not yours")

	resp := doJSON(t, app, http.MethodPut, "/api/posts/1", tokenFor(t, s, intruder), map[string]string{
		"title": "hijacked",
	})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDeletePost(t *testing.T) {
	s, app, _ := newTestServer(t)
	author := createUser(t, s, "author", models.RoleMember)
	admin := createUser(t, s, "admin", models.RoleAdmin)
	authorToken := tokenFor(t, s, author)

	seedPost(t, s, author.ID, models.StatusDraft, "own draft")
	seedPost(t, s, author.ID, models.StatusPending, "in review")

	resp := doJSON(t, app, http.MethodDelete, "/api/posts/1", authorToken, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "author deletes own draft")

	resp = doJSON(t, app, http.MethodDelete, "/api/posts/2", authorToken, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "author cannot delete a post under review")

	resp = doJSON(t, app, http.MethodDelete, "/api/posts/2", tokenFor(t, s, admin), nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "admin deletes anything")
}

func TestPostRoutes_RequireAuth(t *testing.T) {
	_, app, _ := newTestServer(t)

	resp := doJSON(t, app, http.MethodPost, "/api/posts", "", map[string]string{"title": "x"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
