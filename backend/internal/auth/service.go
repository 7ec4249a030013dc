// ============================================================================
// backend/internal/auth/service.go
// Edit-code gate and edit-session tokens. The configured code is injected
// through the config object, never read from the environment here.
// ============================================================================

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"nafes-passport/backend/internal/shared"
)

// ErrInvalidToken is returned for missing, malformed, or expired tokens.
var ErrInvalidToken = errors.New("invalid or expired edit token")

// EditClaims is the JWT payload for an unlocked edit session.
type EditClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

const editScope = "edit"

// Service verifies the shared staff edit code and mints short-lived edit
// tokens for the admin endpoints.
type Service struct {
	security shared.SecurityConfig
}

// NewService creates a new auth Service instance
func NewService(security shared.SecurityConfig) *Service {
	return &Service{security: security}
}

// VerifyEditCode reports whether a candidate matches the configured edit
// code. When a bcrypt hash is configured it takes precedence; otherwise
// the plain code is compared in constant time.
func (s *Service) VerifyEditCode(candidate string) bool {
	if candidate == "" {
		return false
	}
	if s.security.EditCodeHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.security.EditCodeHash), []byte(candidate)) == nil
	}
	if s.security.EditCode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.security.EditCode), []byte(candidate)) == 1
}

// IssueEditToken mints a signed edit-session token.
func (s *Service) IssueEditToken() (string, time.Time, error) {
	expiresAt := time.Now().Add(s.security.JWTExpiration)
	claims := EditClaims{
		Scope: editScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "passport-editor",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.security.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign edit token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateEditToken checks a token's signature, expiry, and scope.
func (s *Service) ValidateEditToken(tokenString string) error {
	claims := &EditClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.security.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	if claims.Scope != editScope {
		return ErrInvalidToken
	}
	return nil
}
