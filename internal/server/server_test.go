package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blogapi/internal/config"
	"blogapi/internal/crypto"
	"blogapi/internal/repository"
	"blogapi/internal/service"
	"blogapi/internal/token"
)

type testServer struct {
	handler http.Handler
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	db, err := repository.NewDB(config.DatabaseSQLite, filepath.Join(t.TempDir(), "blog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repository.MigrateDB(db, config.DatabaseSQLite, logger))

	key, err := crypto.NewSigningKey("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	hasher, err := crypto.NewPasswordHasher(config.PasswordBcrypt, 4)
	require.NoError(t, err)

	ts := &testServer{now: time.Now()}
	issuer := token.NewIssuer(key, token.Config{
		Issuer:     "blog-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, token.WithClock(func() time.Time { return ts.now }))

	blocklist := service.NewBlocklist(repository.NewBlocklistRepository(db, logger), nil, 0, logger)
	authService := service.NewAuthService(repository.NewUserRepository(db, logger), hasher, issuer, blocklist, logger)

	ts.handler = NewServer(authService, logger).Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func registerBody() map[string]string {
	return map[string]string{
		"username":   "alice",
		"email":      "a@x.com",
		"password":   "pw123",
		"first_name": "Alice",
		"last_name":  "Liddell",
	}
}

func TestServer_Ping(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", body["message"])
}

func TestServer_EndToEnd(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/register", "", registerBody())
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "alice", body["username"])

	status, body = ts.do(t, http.MethodPost, "/login", "", map[string]string{"username": "alice", "password": "pw123"})
	require.Equal(t, http.StatusOK, status)
	access, _ := body["access"].(string)
	refresh, _ := body["refresh"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	status, body = ts.do(t, http.MethodGet, "/me", access, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "a@x.com", body["email"])
	assert.NotContains(t, body, "password_hash")

	status, body = ts.do(t, http.MethodGet, "/logout", access, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["message"])

	status, body = ts.do(t, http.MethodGet, "/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token has been revoked", body["error"])

	status, body = ts.do(t, http.MethodGet, "/logout", access, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token has been revoked", body["error"])
}

func TestServer_RegisterDuplicate(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, http.MethodPost, "/register", "", registerBody())
	require.Equal(t, http.StatusCreated, status)

	status, body := ts.do(t, http.MethodPost, "/register", "", registerBody())
	assert.Equal(t, http.StatusConflict, status)
	assert.NotEmpty(t, body["error"])
}

func TestServer_RegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	bad := registerBody()
	bad["email"] = "not-an-email"
	status, body := ts.do(t, http.MethodPost, "/register", "", bad)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])

	status, _ = ts.do(t, http.MethodPost, "/register", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_LoginInvalidCredentials(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, http.MethodPost, "/register", "", registerBody())
	require.Equal(t, http.StatusCreated, status)

	status, body := ts.do(t, http.MethodPost, "/login", "", map[string]string{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.NotEmpty(t, body["error"])

	status, _ = ts.do(t, http.MethodPost, "/login", "", map[string]string{"username": "ghost", "password": "pw123"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodPost, "/login", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_Refresh(t *testing.T) {
	ts := newTestServer(t)
	status, _ := ts.do(t, http.MethodPost, "/register", "", registerBody())
	require.Equal(t, http.StatusCreated, status)
	_, body := ts.do(t, http.MethodPost, "/login", "", map[string]string{"username": "alice", "password": "pw123"})
	access := body["access"].(string)
	refresh := body["refresh"].(string)

	status, body = ts.do(t, http.MethodGet, "/refresh", access, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Only refresh tokens are allowed", body["error"])

	status, body = ts.do(t, http.MethodGet, "/me", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Only access tokens are allowed", body["error"])

	for i := 0; i < 2; i++ {
		status, body = ts.do(t, http.MethodGet, "/refresh", refresh, nil)
		require.Equal(t, http.StatusOK, status)
		fresh := body["access"].(string)

		status, _ = ts.do(t, http.MethodGet, "/me", fresh, nil)
		assert.Equal(t, http.StatusOK, status)
	}

	// Access tokens expire; the refresh token still mints new ones.
	ts.now = ts.now.Add(16 * time.Minute)
	status, body = ts.do(t, http.MethodGet, "/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token expired", body["error"])

	status, _ = ts.do(t, http.MethodGet, "/refresh", refresh, nil)
	assert.Equal(t, http.StatusOK, status)

	// Logging out with the refresh token revokes it.
	status, _ = ts.do(t, http.MethodGet, "/logout", refresh, nil)
	require.Equal(t, http.StatusOK, status)
	status, body = ts.do(t, http.MethodGet, "/refresh", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token has been revoked", body["error"])
}

func TestServer_MissingToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/logout", "/refresh", "/me"} {
		status, body := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
		assert.Equal(t, "Authorization header required", body["error"], path)
	}
}
