package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RequestID header key
const RequestIDHeader = "X-Request-ID"

// requestIDContextKey is a custom type to avoid context key collisions
type requestIDContextKey string

const RequestIDContextKey requestIDContextKey = "request_id"

// RequestID assigns every request a correlation ID. It runs first in the
// middleware chain so the metrics and error layers behind it can tag their
// output with it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := resolveRequestID(r)

		// Echo the ID back so poll clients can correlate API calls with logs.
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveRequestID prefers an ID already present on the request: one set by
// chi's RequestID middleware when a deployment mounts it in front, then the
// caller-supplied header. Only when neither exists is a fresh UUID minted.
func resolveRequestID(r *http.Request) string {
	if requestID := middleware.GetReqID(r.Context()); requestID != "" {
		return requestID
	}
	if requestID := r.Header.Get(RequestIDHeader); requestID != "" {
		return requestID
	}
	return uuid.New().String()
}

// GetRequestID retrieves the request ID from context, falling back to chi's
// context key for handlers mounted outside this chain.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return requestID
	}
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		return requestID
	}
	return ""
}
