package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

// LoggerContextKey holds the request-scoped *slog.Logger.
const LoggerContextKey contextKey = "logger"

// WithRequestLogger stores a logger tagged with the method, path, request id
// and client IP in the request context. It must run after RequestID and
// WithClientIP.
func WithRequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			attrs := []any{"method", r.Method, "path", r.URL.Path}
			if id := GetRequestID(ctx); id != "" {
				attrs = append(attrs, "request_id", id)
			}
			if ip := GetClientIPFromContext(ctx); ip != "" {
				attrs = append(attrs, "client_ip", ip)
			}

			ctx = context.WithValue(ctx, LoggerContextKey, base.With(attrs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetLogger returns the request logger, then fallback, then slog.Default.
func GetLogger(ctx context.Context, fallback ...*slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(LoggerContextKey).(*slog.Logger); ok {
		return l
	}
	for _, l := range fallback {
		if l != nil {
			return l
		}
	}
	return slog.Default()
}
