package main

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillbase/quillbase/internal/config"
	"github.com/quillbase/quillbase/internal/middleware"
)

func newTestRouter(t *testing.T, cfg *config.Config) (*chi.Mux, error) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return setupRouter(&routes{}, middleware.AuthConfig{Logger: logger}, middleware.RateLimitConfig{Logger: logger}, cfg, logger)
}

func TestSetupRouter_VideoRoutes(t *testing.T) {
	r, err := newTestRouter(t, &config.Config{AppEnv: "test", MaxRequestBodySize: 1 << 20})
	require.NoError(t, err)

	registered := map[string]bool{}
	require.NoError(t, chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		registered[method+" "+route] = true
		return nil
	}))

	for _, want := range []string{
		"POST /api/v1/videos/",
		"PATCH /api/v1/videos/{id}",
		"DELETE /api/v1/videos/{id}",
		"POST /api/v1/videos/{id}/download",
		"POST /api/v1/videos/{id}/{action}",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
	assert.False(t, registered["PUT /api/v1/videos/{id}/{action}"], "reactions are POST only")
}

func TestSetupRouter_RejectsBadCORSOrigin(t *testing.T) {
	_, err := newTestRouter(t, &config.Config{CORSAllowedOrigins: "blog.example.com"})
	assert.ErrorContains(t, err, "CORS_ALLOWED_ORIGINS")
}
