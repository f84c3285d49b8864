package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quillbase/quillbase/internal/auth"
	"github.com/quillbase/quillbase/internal/model"
)

const (
	// minAuthDuration is the minimum time to spend on auth to prevent timing attacks.
	minAuthDuration = 200 * time.Millisecond
)

// KeyStore is the persistence the auth middleware needs.
type KeyStore interface {
	FindCredentials(ctx context.Context, prefix string) ([]*model.Credential, error)
	TouchAPIKey(ctx context.Context, id string) error
}

// AuthCache caches resolved auth contexts by a fast hash of the raw key.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Keys   KeyStore
	Cache  AuthCache
	// MinDuration overrides minAuthDuration when positive.
	MinDuration time.Duration
}

var (
	errMissingKey    = errors.New("missing_key")
	errInvalidFormat = errors.New("invalid_format")
	errInvalidKey    = errors.New("invalid_key")
)

// Auth returns a middleware that authenticates API requests.
// It extracts the API key from the Authorization header,
// verifies it, and injects the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return authenticate(cfg, false)
}

// OptionalAuth authenticates the request when a key is presented and lets
// anonymous requests through untouched. A presented but invalid key is
// still rejected.
func OptionalAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	return authenticate(cfg, true)
}

func authenticate(cfg AuthConfig, optional bool) func(http.Handler) http.Handler {
	minDuration := minAuthDuration
	if cfg.MinDuration > 0 {
		minDuration = cfg.MinDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractAPIKey(r)
			if key == "" && optional {
				next.ServeHTTP(w, r)
				return
			}

			startTime := time.Now()
			authCtx, cacheHit, err := resolve(r.Context(), cfg, key)

			// Ensure consistent timing regardless of outcome
			if elapsed := time.Since(startTime); elapsed < minDuration {
				time.Sleep(minDuration - elapsed)
			}

			if err != nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", failureReason(err)),
					slog.String("ip", getClientIP(r)),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			cfg.Logger.Info("authentication successful",
				slog.String("key_id", authCtx.KeyID),
				slog.String("key_prefix", authCtx.KeyPrefix),
				slog.String("user_id", authCtx.UserID),
				slog.Bool("superuser", authCtx.IsSuperuser),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Bool("cache_hit", cacheHit),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			recordCaller(r.Context(), authCtx)
			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolve turns a raw key into an auth context, consulting the cache first.
func resolve(ctx context.Context, cfg AuthConfig, key string) (*model.AuthContext, bool, error) {
	if key == "" {
		return nil, false, errMissingKey
	}

	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, false, errInvalidFormat
	}

	cacheKey := auth.QuickHash(key)
	if cached, _ := cfg.Cache.GetAuthContext(ctx, cacheKey); cached != nil {
		return cached, true, nil
	}

	creds, err := cfg.Keys.FindCredentials(ctx, parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("database error during auth",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(ctx)),
		)
		return nil, false, err
	}

	// Prefixes can collide, so every candidate is verified.
	var matched *model.Credential
	for _, c := range creds {
		if ok, err := auth.VerifySecret(key, c.Key.KeyHash); err == nil && ok {
			matched = c
			break
		}
	}
	if matched == nil {
		return nil, false, errInvalidKey
	}

	authCtx := matched.AuthContext()
	_ = cfg.Cache.SetAuthContext(ctx, cacheKey, authCtx)

	go func(id string) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = cfg.Keys.TouchAPIKey(ctx, id)
	}(authCtx.KeyID)

	return authCtx, false, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, errMissingKey), errors.Is(err, errInvalidFormat), errors.Is(err, errInvalidKey):
		return err.Error()
	default:
		return "lookup_error"
	}
}

// extractAPIKey extracts the API key from the request.
// Supports both "Authorization: Bearer <key>" and "X-API-Key: <key>" headers.
func extractAPIKey(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return r.Header.Get("X-API-Key")
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
}
