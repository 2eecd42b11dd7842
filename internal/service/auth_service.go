package service

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"coherence/internal/model"
)

// AuthService verifies access tokens issued by the identity provider. The
// provider signs with a shared HS256 secret.
type AuthService struct {
	jwtSecret []byte
	audience  string
}

// NewAuthService creates a verifier; an empty audience skips the aud check
func NewAuthService(secret, audience string) *AuthService {
	return &AuthService{
		jwtSecret: []byte(secret),
		audience:  audience,
	}
}

// Enabled reports whether a secret is configured
func (s *AuthService) Enabled() bool {
	return len(s.jwtSecret) > 0
}

// ValidateUserToken validates an access token and returns its claims
func (s *AuthService) ValidateUserToken(tokenString string) (*model.UserClaims, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("auth: %w", ErrUnavailable)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &model.UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*model.UserClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CurrentUser converts verified claims into the public user view
func CurrentUser(claims *model.UserClaims) *model.CurrentUser {
	return &model.CurrentUser{
		ID:            claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Role:          claims.Role,
		Authenticated: true,
	}
}
