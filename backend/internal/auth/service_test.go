package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"nafes-passport/backend/internal/shared"
)

func testSecurity() shared.SecurityConfig {
	return shared.SecurityConfig{
		EditCode:      "space-2024",
		JWTSecret:     "test-secret",
		JWTExpiration: time.Hour,
	}
}

func TestVerifyEditCode_Plain(t *testing.T) {
	svc := NewService(testSecurity())

	if !svc.VerifyEditCode("space-2024") {
		t.Error("correct code rejected")
	}
	if svc.VerifyEditCode("wrong") {
		t.Error("wrong code accepted")
	}
	if svc.VerifyEditCode("") {
		t.Error("empty code accepted")
	}
}

func TestVerifyEditCode_BcryptHashTakesPrecedence(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-code"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}

	cfg := testSecurity()
	cfg.EditCodeHash = string(hash)
	svc := NewService(cfg)

	if !svc.VerifyEditCode("hashed-code") {
		t.Error("correct hashed code rejected")
	}
	// The plain EDIT_CODE must be ignored once a hash is configured.
	if svc.VerifyEditCode("space-2024") {
		t.Error("plain code accepted despite configured hash")
	}
}

func TestVerifyEditCode_NothingConfigured(t *testing.T) {
	svc := NewService(shared.SecurityConfig{JWTSecret: "s", JWTExpiration: time.Hour})
	if svc.VerifyEditCode("anything") {
		t.Error("code accepted with no configured code")
	}
}

func TestEditTokenRoundTrip(t *testing.T) {
	svc := NewService(testSecurity())

	token, expiresAt, err := svc.IssueEditToken()
	if err != nil {
		t.Fatalf("IssueEditToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("token already expired at issue time")
	}
	if err := svc.ValidateEditToken(token); err != nil {
		t.Errorf("freshly issued token rejected: %v", err)
	}
}

func TestValidateEditToken_Rejections(t *testing.T) {
	svc := NewService(testSecurity())

	if err := svc.ValidateEditToken("not-a-token"); err != ErrInvalidToken {
		t.Errorf("garbage token: got %v, want ErrInvalidToken", err)
	}

	// Token signed with a different secret must not validate.
	other := NewService(shared.SecurityConfig{EditCode: "x", JWTSecret: "other-secret", JWTExpiration: time.Hour})
	token, _, err := other.IssueEditToken()
	if err != nil {
		t.Fatalf("IssueEditToken failed: %v", err)
	}
	if err := svc.ValidateEditToken(token); err != ErrInvalidToken {
		t.Errorf("wrong-secret token: got %v, want ErrInvalidToken", err)
	}

	// Expired token must not validate.
	expired := NewService(shared.SecurityConfig{EditCode: "x", JWTSecret: "test-secret", JWTExpiration: -time.Minute})
	token, _, err = expired.IssueEditToken()
	if err != nil {
		t.Fatalf("IssueEditToken failed: %v", err)
	}
	if err := svc.ValidateEditToken(token); err != ErrInvalidToken {
		t.Errorf("expired token: got %v, want ErrInvalidToken", err)
	}
}
