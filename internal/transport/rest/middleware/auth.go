package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"coherence/internal/model"
	"coherence/internal/service"
)

type contextKey string

const UserClaimsKey contextKey = "userClaims"

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	authSvc  *service.AuthService
	required bool
}

// NewAuthMiddleware creates a new auth middleware. When required is set,
// OptionalUser behaves like RequireUser.
func NewAuthMiddleware(authSvc *service.AuthService, required bool) *AuthMiddleware {
	return &AuthMiddleware{authSvc: authSvc, required: required}
}

// RequireUser validates the bearer token and rejects anonymous requests
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			unauthorized(w, "missing authorization header")
			return
		}
		claims, err := m.authSvc.ValidateUserToken(token)
		if err != nil {
			unauthorized(w, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserClaimsKey, claims)))
	})
}

// OptionalUser attaches the user when a valid token is sent. A token that
// is sent but invalid is still rejected.
func (m *AuthMiddleware) OptionalUser(next http.Handler) http.Handler {
	if m.required {
		return m.RequireUser(next)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" || !m.authSvc.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := m.authSvc.ValidateUserToken(token)
		if err != nil {
			unauthorized(w, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserClaimsKey, claims)))
	})
}

// GetUser extracts the verified claims from context
func GetUser(ctx context.Context) *model.UserClaims {
	if v, ok := ctx.Value(UserClaimsKey).(*model.UserClaims); ok {
		return v
	}
	return nil
}

// GetUserID extracts the user id from context
func GetUserID(ctx context.Context) string {
	if claims := GetUser(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":     message,
		"code":      "UNAUTHORIZED",
		"retryable": false,
	})
}
