package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "parkshare/pkg/errors"
	"parkshare/pkg/logger"
)

const (
	UserIDHeader = "X-User-ID"

	UserIDKey contextKey = "user_id"
)

// RequireUser reads the caller id set by the authenticating gateway. Requests
// without one are rejected.
func RequireUser(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				log.Warn("Request without user id",
					"request_id", RequestID(r.Context()),
					"path", r.URL.Path,
					"method", r.Method,
				)
				reject(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, UserIDHeader+" header is required")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
