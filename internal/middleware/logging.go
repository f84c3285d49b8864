package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// quietPaths are scraped by orchestrators and monitoring. Successful hits are
// logged at debug so they do not drown the access log.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Logger returns a middleware that writes one access log line per request.
// The line names the route pattern, so /api/v1/blogs/{blogID} groups every
// blog, and the authenticated caller when there is one. Credentials and
// query strings are never logged.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			ctx := r.Context()
			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(ctx)),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", wrapped.status),
				slog.Int64("bytes", wrapped.bytes),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}
			if route := routePattern(r); route != "" {
				attrs = append(attrs, slog.String("route", route))
			}
			if traceID := GetTraceID(ctx); traceID != "" {
				attrs = append(attrs, slog.String("trace_id", traceID))
			}
			if a := callerOf(ctx); a != nil {
				attrs = append(attrs, slog.Group("caller",
					slog.String("user_id", a.UserID),
					slog.String("key_prefix", a.KeyPrefix),
					slog.Bool("superuser", a.IsSuperuser),
				))
			} else {
				attrs = append(attrs, slog.Bool("anonymous", true))
			}

			logger.LogAttrs(ctx, accessLevel(r.URL.Path, wrapped.status), "http request", attrs...)
		})
	}
}

func accessLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case quietPaths[strings.TrimSuffix(path, "/")]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// routePattern is the chi pattern that matched, once routing has run.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
