// Package middleware holds the HTTP middleware chain: session auth and
// per-request logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"twin_gateway/internal/auth"
	"twin_gateway/internal/config"
)

// ContextKey is the type for request context keys set by middleware
type ContextKey string

// UserIDKey carries the authenticated user's ID
const UserIDKey ContextKey = "userID"

// SessionMiddleware validates the bearer session token and embeds the
// user ID into the request context.
func SessionMiddleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				respondError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			userID, err := auth.DecodeToken(tokenString, cfg)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID retrieves the authenticated user ID from the request context
func GetUserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
