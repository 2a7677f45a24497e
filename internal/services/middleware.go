package services

import (
	"context"
	"net/http"
	"strings"

	"portfolio/internal/util"
)

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFromContext returns the admin session claims set by RequireAdmin
func ClaimsFromContext(ctx context.Context) (*util.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*util.Claims)
	return claims, ok
}

// RequireAdmin rejects requests without a valid admin bearer token
func RequireAdmin(auth *AuthService, onError func(w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				onError(w, ErrInvalidCredential)
				return
			}

			claims, err := auth.Authorize(strings.TrimSpace(parts[1]))
			if err != nil {
				onError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
