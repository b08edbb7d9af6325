package mw

import (
	"context"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/inkwave/commerce-api/internal/auth"
)

func TestGetUserClaims(t *testing.T) {
	if GetUserClaims(context.Background()) != nil {
		t.Error("expected nil claims for bare context")
	}

	claims := &UserClaims{UserID: "user_1", Admin: true}
	ctx := context.WithValue(context.Background(), UserClaimsKey, claims)
	got := GetUserClaims(ctx)
	if got == nil || got.UserID != "user_1" || !got.Admin {
		t.Errorf("claims not round-tripped: %+v", got)
	}

	// Wrong type under the key is treated as absent.
	ctx = context.WithValue(context.Background(), UserClaimsKey, "not claims")
	if GetUserClaims(ctx) != nil {
		t.Error("expected nil for mistyped context value")
	}
}

func TestValidateBearer(t *testing.T) {
	verifier := auth.NewVerifier("test-secret")
	token, err := verifier.IssueToken("user_1", "u@example.com", true, time.Hour)
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}

	claims, err := validateBearer(verifier, "Bearer "+token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != "user_1" || claims.Email != "u@example.com" || !claims.Admin {
		t.Errorf("claims not mapped: %+v", claims)
	}

	// Raw token without the Bearer prefix is accepted too.
	if _, err := validateBearer(verifier, token); err != nil {
		t.Errorf("bare token rejected: %v", err)
	}

	if _, err := validateBearer(verifier, "Bearer garbage"); err == nil {
		t.Error("expected error for garbage token")
	}

	expired, err := verifier.IssueToken("user_1", "", false, -time.Hour)
	if err != nil {
		t.Fatalf("issue expired token failed: %v", err)
	}
	if _, err := validateBearer(verifier, "Bearer "+expired); err == nil {
		t.Error("expected error for expired token")
	}

	// Token signed with a different secret.
	other := auth.NewVerifier("other-secret")
	forged, _ := other.IssueToken("user_1", "", false, time.Hour)
	if _, err := validateBearer(verifier, "Bearer "+forged); err == nil {
		t.Error("expected error for token with wrong signature")
	}

	if _, err := validateBearer(nil, "Bearer "+token); err == nil {
		t.Error("expected error with nil verifier")
	}
}

func TestOperationRequiresAuth(t *testing.T) {
	public := &huma.Operation{}
	if operationRequiresAuth(public) {
		t.Error("operation without security must not require auth")
	}

	protected := &huma.Operation{
		Security: []map[string][]string{{SecurityScheme: {}}},
	}
	if !operationRequiresAuth(protected) {
		t.Error("operation with bearer security must require auth")
	}

	other := &huma.Operation{
		Security: []map[string][]string{{"basicAuth": {}}},
	}
	if operationRequiresAuth(other) {
		t.Error("unrelated security scheme must not trigger bearer auth")
	}
}

func TestRequiresAdmin(t *testing.T) {
	op := &huma.Operation{}
	if requiresAdmin(op) {
		t.Error("operation without metadata must not require admin")
	}

	WithAdmin()(op)
	if !requiresAdmin(op) {
		t.Error("WithAdmin must set the admin requirement")
	}
}
