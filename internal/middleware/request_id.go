// Package middleware provides HTTP middleware components.
package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/quillbase/quillbase/internal/model"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	traceIDKey
	callerKey
)

// RequestIDHeader is the HTTP header for request ID.
const RequestIDHeader = "X-Request-ID"

// TraceIDHeader is the HTTP header for trace ID.
const TraceIDHeader = "X-Trace-ID"

// maxClientIDLen bounds client supplied request and trace IDs.
const maxClientIDLen = 64

// caller is filled in by the auth middleware further down the chain and read
// back by the access log once the handler returns.
type caller struct {
	mu   sync.Mutex
	auth *model.AuthContext
}

// RequestID tags each request with an ID. A client supplied X-Request-ID is
// kept when it is short and printable; anything else is replaced by a UUID.
// The request also gets a slot for the authenticated caller.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validClientID(requestID) {
			requestID = uuid.NewString()
		}
		traceID := r.Header.Get(TraceIDHeader)
		if !validClientID(traceID) {
			traceID = ""
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = context.WithValue(ctx, callerKey, &caller{})
		w.Header().Set(RequestIDHeader, requestID)
		if traceID != "" {
			ctx = context.WithValue(ctx, traceIDKey, traceID)
			w.Header().Set(TraceIDHeader, traceID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validClientID accepts IDs made of letters, digits and "-_.:".
func validClientID(id string) bool {
	if id == "" || len(id) > maxClientIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetTraceID retrieves the trace ID from context.
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// recordCaller notes who the request was authenticated as.
func recordCaller(ctx context.Context, a *model.AuthContext) {
	if c, ok := ctx.Value(callerKey).(*caller); ok {
		c.mu.Lock()
		c.auth = a
		c.mu.Unlock()
	}
}

// callerOf returns the caller recorded for the request, or nil for
// anonymous requests.
func callerOf(ctx context.Context) *model.AuthContext {
	c, ok := ctx.Value(callerKey).(*caller)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auth
}
