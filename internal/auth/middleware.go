package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	pkghttp "github.com/questkeep/questkeep/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ParentContextKey is the key for storing parent-mode claims in context
	ParentContextKey contextKey = "parent_mode"
)

// RequireParentMode validates a parent-mode bearer token. When the route has a
// {userID} parameter the token must have been issued for that user.
func RequireParentMode(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired parent token")
				return
			}

			if userID := chi.URLParam(r, "userID"); userID != "" && userID != claims.UserID {
				pkghttp.WriteForbidden(w, "parent token was issued for another user")
				return
			}

			ctx := context.WithValue(r.Context(), ParentContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParentClaimsFromContext retrieves parent-mode claims set by RequireParentMode
func ParentClaimsFromContext(ctx context.Context) (*ParentModeClaims, bool) {
	claims, ok := ctx.Value(ParentContextKey).(*ParentModeClaims)
	return claims, ok
}
