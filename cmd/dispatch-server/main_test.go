package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ers/dispatch/internal/config"
	"github.com/ers/dispatch/internal/platform/auth"
	"github.com/ers/dispatch/internal/platform/blobstore"
	"github.com/ers/dispatch/internal/platform/events"
	"github.com/ers/dispatch/internal/platform/metrics"
	"github.com/ers/dispatch/internal/platform/websocket"
)

const testSecret = "main-test-secret-0123456789abcdef"

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:              env,
		JWTSecret:        testSecret,
		JWTTTL:           time.Hour,
		CORSOrigins:      []string{"*"},
		RateLimit:        "1000-S",
		AuthRateLimit:    "1000-M",
		UploadBackend:    "local",
		UploadPublicBase: "/uploads",
		RequestTimeout:   5 * time.Second,
	}
}

// testApp wires every service against a nil pool; requests that reach the
// database must not be issued.
func testApp(t *testing.T, env string) *app {
	t.Helper()
	hub := websocket.NewHub(zerolog.Nop())
	return newApp(testConfig(env), zerolog.Nop(), nil, events.Multi{hub}, hub,
		blobstore.NewMemoryStore("/uploads"), metrics.New())
}

func bearer(t *testing.T, role string, responderID int64) string {
	t.Helper()
	tok, _, err := auth.NewIssuer(testSecret, tokenIssuer, time.Hour).Issue(auth.Identity{
		UserID: 7, Username: "tester", Role: role, ResponderID: responderID,
	})
	require.NoError(t, err)
	return "Bearer " + tok
}

func serve(e http.Handler, method, path, body, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRootCmd_Tree(t *testing.T) {
	root := rootCmd()
	want := map[string][]string{
		"serve":   nil,
		"migrate": {"up", "status"},
		"user":    {"create"},
	}
	for name, subs := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
		for _, sub := range subs {
			c, _, err := root.Find([]string{name, sub})
			require.NoError(t, err, name+" "+sub)
			assert.Equal(t, sub, c.Name())
		}
	}

	up, _, _ := root.Find([]string{"migrate", "up"})
	schema, _ := up.Flags().GetString("schema")
	assert.Equal(t, "public", schema)

	create, _, _ := root.Find([]string{"user", "create"})
	role, _ := create.Flags().GetString("role")
	assert.Equal(t, auth.RoleDispatcher, role)
}

func TestMigrationsDir(t *testing.T) {
	cfg := &config.Config{MigrationsDir: "./migrations"}
	up, _, _ := rootCmd().Find([]string{"migrate", "up"})
	assert.Equal(t, "./migrations", migrationsDir(up, cfg))

	require.NoError(t, up.Flags().Set("dir", "/srv/sql"))
	assert.Equal(t, "/srv/sql", migrationsDir(up, cfg))
}

func TestFilesPrefix(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"/uploads", "/uploads"},
		{"/uploads/", "/uploads"},
		{"media", "/media"},
		{"https://cdn.example.com/files/", "/files"},
		{"https://cdn.example.com", "/uploads"},
		{"", "/uploads"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, filesPrefix(tt.base), tt.base)
	}
}

func TestRandomSecret(t *testing.T) {
	a, err := randomSecret()
	require.NoError(t, err)
	b, err := randomSecret()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestNewUploadStore(t *testing.T) {
	ctx := context.Background()

	t.Run("local", func(t *testing.T) {
		cfg := testConfig("production")
		cfg.UploadDir = filepath.Join(t.TempDir(), "uploads")
		store, err := newUploadStore(ctx, cfg, zerolog.Nop())
		require.NoError(t, err)
		assert.IsType(t, &blobstore.LocalStore{}, store)
	})

	// A regular file where the directory should be makes MkdirAll fail.
	blocked := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	t.Run("dev falls back to memory", func(t *testing.T) {
		cfg := testConfig("development")
		cfg.UploadDir = filepath.Join(blocked, "uploads")
		store, err := newUploadStore(ctx, cfg, zerolog.Nop())
		require.NoError(t, err)
		assert.IsType(t, &blobstore.MemoryStore{}, store)
	})

	t.Run("production fails", func(t *testing.T) {
		cfg := testConfig("production")
		cfg.UploadDir = filepath.Join(blocked, "uploads")
		_, err := newUploadStore(ctx, cfg, zerolog.Nop())
		assert.Error(t, err)
	})
}

func TestRouter_Routes(t *testing.T) {
	e := testApp(t, "production").router()

	registered := map[string]bool{}
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	for _, want := range []string{
		"GET /health",
		"GET /health/db",
		"GET /metrics",
		"GET /ws",
		"POST /api/register",
		"POST /api/auth",
		"GET /api/responders",
		"GET /api/responders/:id",
		"PUT /api/responders/:id/status",
		"GET /api/alerts",
		"POST /api/alerts",
		"PUT /api/alerts",
		"GET /api/alerts/:id",
		"POST /api/alerts/assign",
		"POST /api/alerts/accept",
		"POST /api/alerts/reject",
		"POST /api/alerts/unassign",
		"POST /api/alerts/complete",
		"GET /api/patients",
		"POST /api/patients",
		"GET /api/patients/:id",
		"PUT /api/patients/:id",
		"DELETE /api/patients/:id",
		"PUT /api/patients/:id/diagnostic",
		"POST /api/patients/:id/trauma",
		"GET /api/gps",
		"GET /api/gps/latest",
		"POST /api/gps",
		"POST /api/upload",
		"GET /uploads/:name",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestRouter_Health(t *testing.T) {
	e := testApp(t, "production").router()

	rec := serve(e, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = serve(e, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRouter_RequiresToken(t *testing.T) {
	e := testApp(t, "production").router()

	rec := serve(e, http.MethodGet, "/api/alerts", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/api/alerts", "", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_RoleGuards(t *testing.T) {
	e := testApp(t, "production").router()
	responderToken := bearer(t, auth.RoleResponder, 3)

	rec := serve(e, http.MethodPost, "/api/alerts", `{"type":"fire"}`, responderToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(e, http.MethodPost, "/api/alerts/assign", `{"alertId":1,"responderId":3}`, responderToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// A responder may not act on behalf of another responder.
	rec = serve(e, http.MethodPost, "/api/alerts/accept", `{"alertId":1,"responderId":4}`, responderToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_ValidationBeforeStorage(t *testing.T) {
	e := testApp(t, "production").router()

	rec := serve(e, http.MethodPost, "/api/register", `{"username":"rico"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, http.MethodPost, "/api/auth", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, http.MethodPost, "/api/alerts/assign", `{"alertId":"abc","responderId":3}`, bearer(t, auth.RoleDispatcher, 0))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_NotFound(t *testing.T) {
	e := testApp(t, "development").router()

	rec := serve(e, http.MethodGet, "/api/nothing-here", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(e, http.MethodGet, "/uploads/missing.png", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
