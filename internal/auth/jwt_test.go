package auth

import (
	"errors"
	"testing"
	"time"
)

func TestVerifyTokenRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.IssueToken("user_123", "reader@example.com", false, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.UserID != "user_123" {
		t.Errorf("expected user_123, got %s", claims.UserID)
	}
	if claims.Email != "reader@example.com" {
		t.Errorf("expected email, got %s", claims.Email)
	}
	if claims.Admin {
		t.Error("expected non-admin")
	}
}

func TestVerifyTokenAdmin(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.IssueToken("user_ops", "", true, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	claims, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !claims.Admin {
		t.Error("expected admin claim")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.IssueToken("user_123", "", false, -time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	_, err = v.VerifyToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	issuer := NewVerifier("secret-a")
	verifier := NewVerifier("secret-b")

	token, err := issuer.IssueToken("user_123", "", false, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	_, err = verifier.VerifyToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyTokenGarbage(t *testing.T) {
	v := NewVerifier("test-secret")
	if _, err := v.VerifyToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
