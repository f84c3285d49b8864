package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"
	defaultFrameOptions          = "DENY"
	defaultReferrerPolicy        = "no-referrer"
	defaultPermissionsPolicy     = "geolocation=(), microphone=(), camera=(), payment=(), usb=()"
	hstsValue                    = "max-age=31536000; includeSubDomains"
)

// SecurityConfig controls the hardening headers. Zero-valued policy fields
// fall back to the API defaults.
type SecurityConfig struct {
	// HSTS adds Strict-Transport-Security. Only enable it behind TLS.
	HSTS bool

	ContentSecurityPolicy string
	FrameOptions          string
	ReferrerPolicy        string
	PermissionsPolicy     string

	// PublicMaxAge lets shared caches keep successful anonymous GETs under
	// PublicPrefixes for that many seconds. Everything else is no-store.
	PublicMaxAge   int
	PublicPrefixes []string
}

// DefaultPublicPrefixes are the read endpoints anyone may call without a key.
var DefaultPublicPrefixes = []string{"/api/v1/blogs", "/api/v1/pages", "/api/v1/users/"}

func (cfg SecurityConfig) withDefaults() SecurityConfig {
	if cfg.ContentSecurityPolicy == "" {
		cfg.ContentSecurityPolicy = defaultContentSecurityPolicy
	}
	if cfg.FrameOptions == "" {
		cfg.FrameOptions = defaultFrameOptions
	}
	if cfg.ReferrerPolicy == "" {
		cfg.ReferrerPolicy = defaultReferrerPolicy
	}
	if cfg.PermissionsPolicy == "" {
		cfg.PermissionsPolicy = defaultPermissionsPolicy
	}
	return cfg
}

// Security sets hardening and caching headers on every response. The
// policies assume JSON responses; nothing here serves HTML.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	publicCache := ""
	if cfg.PublicMaxAge > 0 {
		publicCache = "public, max-age=" + strconv.Itoa(cfg.PublicMaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", cfg.FrameOptions)
			h.Set("Referrer-Policy", cfg.ReferrerPolicy)
			h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
			h.Set("Permissions-Policy", cfg.PermissionsPolicy)
			h.Set("Cross-Origin-Resource-Policy", "same-origin")
			if cfg.HSTS {
				h.Set("Strict-Transport-Security", hstsValue)
			}
			h.Set("Cache-Control", "no-store")

			if publicCache != "" && cacheablePublicRead(r, cfg.PublicPrefixes) {
				// Keyed callers may see more (soft-deleted rows), so the
				// cached anonymous copy must not be served to them.
				h.Add("Vary", "Authorization")
				h.Add("Vary", "X-API-Key")
				w = &publicCacheWriter{ResponseWriter: w, value: publicCache}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func cacheablePublicRead(r *http.Request, prefixes []string) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if r.Header.Get("Authorization") != "" || r.Header.Get("X-API-Key") != "" {
		return false
	}
	for _, p := range prefixes {
		if strings.HasPrefix(r.URL.Path, p) {
			return true
		}
	}
	return false
}

// publicCacheWriter relaxes Cache-Control once the handler answers 200.
type publicCacheWriter struct {
	http.ResponseWriter
	value   string
	decided bool
}

func (w *publicCacheWriter) WriteHeader(code int) {
	if !w.decided {
		w.decided = true
		if code == http.StatusOK {
			w.Header().Set("Cache-Control", w.value)
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *publicCacheWriter) Write(b []byte) (int, error) {
	if !w.decided {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *publicCacheWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// MaxBodySize caps request bodies. A declared Content-Length over the limit
// is refused up front; chunked bodies fail on read past the limit.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
