package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gatehouse/internal/analysis"
	"gatehouse/internal/config"
	"gatehouse/internal/database"
	"gatehouse/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testJWTSecret = "server-test-secret-123456789012345678901234"
	testPassword  = "Sup3r-secret-pass!"
)

// testRules drives the rule analyzer in tests: one severe pattern that
// crosses the escalation threshold and one mild pattern that does not.
const testRules = `
rules:
  - pattern: "(?i)free money"
    category: spam
    severity: high
    description: spam phrase
  - pattern: "(?i)mildly rude"
    category: tone
    severity: low
    description: rude phrase
`

// newTestServer builds a fully wired server on an in-memory sqlite database
// and a miniredis instance, with routes registered on a bare fiber app.
func newTestServer(t *testing.T) (*Server, *fiber.App, *miniredis.Miniredis) {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Skipf("in-memory database unavailable: %v", err)
	}
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	analyzer, err := analysis.ParseRules([]byte(testRules))
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:            testJWTSecret,
		Port:                 "0",
		AnalysisTimeoutMS:    1000,
		CheckCacheTTLSeconds: 60,
		CheckCacheSize:       64,
		CheckDebounceMS:      10,
		MinTitleLen:          3,
		MinBodyLen:           10,
	}

	s, err := NewServerWithDeps(cfg, db, rdb, analyzer)
	require.NoError(t, err)

	app := fiber.New()
	s.SetupRoutes(app)
	return s, app, mr
}

// createUser inserts a user with the shared test password and the given role.
func createUser(t *testing.T, s *Server, username string, role models.Role) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: string(hashed),
		Role:     role,
	}
	require.NoError(t, s.db.Create(user).Error)
	return user
}

// tokenFor issues a real token for the user, role claim included.
func tokenFor(t *testing.T, s *Server, user *models.User) string {
	t.Helper()
	token, err := s.generateToken(user.ID, user.Username, user.Role)
	require.NoError(t, err)
	return token
}

// doJSON performs a request against the app with an optional bearer token and
// JSON body, returning the response.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

// decodeJSON unmarshals the response body into dest and closes it.
func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}
