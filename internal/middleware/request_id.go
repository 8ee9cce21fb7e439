package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

const requestIDKey contextKey = "requestId"

const maxRequestIDLen = 64

// RequestID reuses a caller supplied id when it is safe to log, otherwise mints one. The
// id is echoed on the response and carried on the request context.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := incomingRequestID(r)
			if id == "" {
				id = uuid.NewString()
			}
			r.Header.Set(RequestIDHeader, id)
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
		})
	}
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func incomingRequestID(r *http.Request) string {
	for _, key := range []string{RequestIDHeader, "X-Correlation-Id"} {
		if value := strings.TrimSpace(r.Header.Get(key)); value != "" {
			if safeRequestID(value) {
				return value
			}
			return ""
		}
	}
	return ""
}

func safeRequestID(value string) bool {
	if len(value) > maxRequestIDLen {
		return false
	}
	for _, c := range value {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return false
		}
	}
	return true
}
