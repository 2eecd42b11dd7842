package model

import "github.com/golang-jwt/jwt/v5"

// UserClaims are the claims of an access token issued by the external
// identity provider
type UserClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

// CurrentUser is the /auth/me response
type CurrentUser struct {
	ID            string `json:"user_id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Role          string `json:"role,omitempty"`
	Authenticated bool   `json:"authenticated"`
}
