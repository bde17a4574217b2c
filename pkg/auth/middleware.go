// Package auth provides authentication and authorization for the HTTP
// and WebSocket transports.
package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const claimsContextKey contextKey = "claims"

// HTTPMiddleware authenticates every request with a Bearer token from
// the Authorization header, adding the resulting Claims to the request
// context for downstream handlers to read with GetClaims.
func (v *JWTValidator) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"error":"Missing Authorization header"}`, http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, `{"error":"Invalid Authorization format, expected: Bearer <token>"}`, http.StatusUnauthorized)
			return
		}

		claims, err := v.ValidateToken(r.Context(), tokenString)
		if err != nil {
			http.Error(w, `{"error":"Unauthorized: `+err.Error()+`"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaims extracts claims from a request context. Returns nil if the
// request was not authenticated (e.g. auth is disabled).
func GetClaims(r *http.Request) *Claims {
	if claims, ok := r.Context().Value(claimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}

// RequireRole wraps a handler so it only serves requests whose claims
// carry one of the allowed roles.
func RequireRole(validator *JWTValidator, allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return validator.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r)
			if claims == nil {
				http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
				return
			}
			for _, allowedRole := range allowedRoles {
				if claims.Role == allowedRole {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, `{"error":"Forbidden: insufficient permissions"}`, http.StatusForbidden)
		}))
	}
}

// RequireTenant wraps a handler so it only serves requests whose claims
// carry one of the allowed tenant ids.
func RequireTenant(validator *JWTValidator, allowedTenants ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return validator.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r)
			if claims == nil {
				http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
				return
			}
			for _, allowedTenant := range allowedTenants {
				if claims.TenantID == allowedTenant {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, `{"error":"Forbidden: access denied for this tenant"}`, http.StatusForbidden)
		}))
	}
}
