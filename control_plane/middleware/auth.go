package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/liuqk23/PileFlow/control_plane/auth"
)

// ContextKey is a strict type for context keys to prevent collisions.
type ContextKey string

const (
	// UsernameKey is the context key for the authenticated username.
	UsernameKey ContextKey = "username"
	// RoleKey is the context key for the authenticated role.
	RoleKey ContextKey = "role"
)

// AuthMiddleware enforces JWT authentication on requests and injects the
// authenticated username and role into the context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization format. Expected 'Bearer <token>'", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ValidateToken(parts[1])
		if err != nil {
			http.Error(w, fmt.Sprintf("Unauthorized: %v", err), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UsernameKey, claims.Username)
		ctx = context.WithValue(ctx, RoleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole wraps a handler and rejects callers whose role differs.
func RequireRole(role auth.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, err := GetRoleFromContext(r.Context())
		if err != nil || got != role {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUsernameFromContext retrieves the authenticated username.
func GetUsernameFromContext(ctx context.Context) (string, error) {
	val := ctx.Value(UsernameKey)
	if val == nil {
		return "", fmt.Errorf("username not found in context")
	}
	username, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("username in context is not a string")
	}
	return username, nil
}

// GetRoleFromContext retrieves the authenticated role.
func GetRoleFromContext(ctx context.Context) (auth.Role, error) {
	val := ctx.Value(RoleKey)
	if val == nil {
		return "", fmt.Errorf("role not found in context")
	}
	role, ok := val.(auth.Role)
	if !ok {
		return "", fmt.Errorf("role in context has unexpected type")
	}
	return role, nil
}
