package handler

import (
	"net/http"

	"coherence/internal/service"
	"coherence/internal/transport/rest/middleware"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct{}

// NewAuthHandler creates a new auth handler
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUser(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "not authenticated", false)
		return
	}
	writeJSON(w, http.StatusOK, service.CurrentUser(claims))
}
