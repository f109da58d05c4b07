package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sprauser-coder/Cataloro-sub005/internal/auth"
)

// UserClaimsKey is the key used to store identity claims in the request context.
const UserClaimsKey contextKey = "userClaims"

// TokenMiddleware validates the identity token from the Authorization header.
func TokenMiddleware(tm *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Authorization header format must be Bearer {token}", http.StatusUnauthorized)
				return
			}

			tokenString := parts[1]
			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			// Add the claims to the context for downstream handlers to use.
			ctx := context.WithValue(r.Context(), UserClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user id, or uuid.Nil when the
// request carried no valid claims.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if claims, ok := ctx.Value(UserClaimsKey).(*auth.Claims); ok {
		return claims.UserID
	}
	return uuid.Nil
}
