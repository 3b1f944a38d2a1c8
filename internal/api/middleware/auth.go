package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/chirp-labs/chirp/internal/api"
)

const (
	AdminUserKey contextKey = "admin_user"
	BotIDKey     contextKey = "bot_id"
)

// SessionValidator resolves an admin session token to a username.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (string, error)
}

// AdminAuth guards dashboard routes with a Bearer session token.
func AdminAuth(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			username, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), AdminUserKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminUser returns the authenticated admin username from context.
func GetAdminUser(ctx context.Context) string {
	username, _ := ctx.Value(AdminUserKey).(string)
	return username
}

// WithBotID stores the bot ID a request acted on, for access logging.
func WithBotID(ctx context.Context, botID string) context.Context {
	return context.WithValue(ctx, BotIDKey, botID)
}

// GetBotID returns the bot ID from context.
func GetBotID(ctx context.Context) string {
	botID, _ := ctx.Value(BotIDKey).(string)
	return botID
}
