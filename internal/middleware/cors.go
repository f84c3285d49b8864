package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig lists the browser origins allowed to call the API. API keys
// travel in headers, never cookies, so credentials are not enabled.
type CORSConfig struct {
	// AllowedOrigins are full origins ("https://app.example.com") or
	// subdomain wildcards ("https://*.example.com"). Empty means same-origin
	// only.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	// ExposedHeaders are readable by browser scripts.
	ExposedHeaders []string
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
	// Logger records blocked preflights. Nil disables it.
	Logger *slog.Logger
}

// DefaultCORSConfig returns the methods and headers the API routes use.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept", "Accept-Language", "Content-Type",
			"Authorization", "X-API-Key", RequestIDHeader, TraceIDHeader,
		},
		ExposedHeaders: []string{
			RequestIDHeader, TraceIDHeader,
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
			"Retry-After",
		},
		MaxAge: 86400,
	}
}

type corsPolicy struct {
	exact    map[string]struct{}
	suffixes []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string
	suffix string // ".example.com", port included if given
}

func newCORSPolicy(origins []string) (corsPolicy, error) {
	p := corsPolicy{exact: make(map[string]struct{}, len(origins))}
	for _, raw := range origins {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		scheme, host, err := splitOrigin(raw)
		if err != nil {
			return corsPolicy{}, fmt.Errorf("parse origin %q: %w", raw, err)
		}
		if rest, ok := strings.CutPrefix(host, "*."); ok {
			if rest == "" || strings.Contains(rest, "*") {
				return corsPolicy{}, fmt.Errorf("parse origin %q: bad wildcard", raw)
			}
			p.suffixes = append(p.suffixes, wildcardOrigin{scheme: scheme, suffix: "." + rest})
			continue
		}
		p.exact[scheme+"://"+host] = struct{}{}
	}
	return p, nil
}

// splitOrigin lowercases and validates scheme://host[:port].
func splitOrigin(origin string) (string, string, error) {
	u, err := url.Parse(strings.ToLower(origin))
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" || (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.User != nil {
		return "", "", fmt.Errorf("origin must be scheme://host[:port]")
	}
	return u.Scheme, u.Host, nil
}

func (p corsPolicy) allows(origin string) bool {
	scheme, host, err := splitOrigin(origin)
	if err != nil {
		return false
	}
	if _, ok := p.exact[scheme+"://"+host]; ok {
		return true
	}
	for _, w := range p.suffixes {
		if w.scheme == scheme && len(host) > len(w.suffix) && strings.HasSuffix(host, w.suffix) {
			return true
		}
	}
	return false
}

// CORS returns a middleware answering preflights and tagging responses for
// allowed origins. It fails on malformed origins so a bad
// CORS_ALLOWED_ORIGINS stops the server at startup.
func CORS(cfg CORSConfig) (func(http.Handler) http.Handler, error) {
	policy, err := newCORSPolicy(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if !policy.allows(origin) {
				if preflight {
					if cfg.Logger != nil {
						cfg.Logger.Warn("blocked CORS preflight",
							slog.String("origin", origin),
							slog.String("path", r.URL.Path),
							slog.String("request_id", GetRequestID(r.Context())),
						)
					}
					w.WriteHeader(http.StatusForbidden)
					return
				}
				// Without the headers the browser withholds the response.
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			if exposed != "" {
				w.Header().Set("Access-Control-Expose-Headers", exposed)
			}

			if preflight {
				if !slices.Contains(cfg.AllowedMethods, r.Header.Get("Access-Control-Request-Method")) {
					w.WriteHeader(http.StatusMethodNotAllowed)
					return
				}
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				if maxAge != "" {
					w.Header().Set("Access-Control-Max-Age", maxAge)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
