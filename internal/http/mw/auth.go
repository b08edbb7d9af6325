// Package mw contains HTTP middleware for the commerce API.
package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/inkwave/commerce-api/internal/auth"
)

// ContextKey is a type for context keys.
type ContextKey string

// UserClaimsKey is the context key for user claims.
const UserClaimsKey ContextKey = "user_claims"

// SecurityScheme is the name of the security scheme used in OpenAPI.
const SecurityScheme = "bearerAuth"

// OperationMetadataKey is the key for storing additional operation requirements.
type OperationMetadataKey string

// MetaKeyRequireAdmin marks an operation as operator-only.
const MetaKeyRequireAdmin OperationMetadataKey = "requireAdmin"

// UserClaims is the authenticated identity attached to request contexts.
type UserClaims struct {
	UserID string
	Email  string
	Name   string
	Admin  bool
}

// GetUserClaims retrieves user claims from context.
func GetUserClaims(ctx context.Context) *UserClaims {
	claims, ok := ctx.Value(UserClaimsKey).(*UserClaims)
	if !ok {
		return nil
	}
	return claims
}

// validateBearer extracts and verifies the session token from an
// Authorization header value.
func validateBearer(verifier *auth.Verifier, authHeader string) (*UserClaims, error) {
	if verifier == nil {
		return nil, auth.ErrInvalidToken
	}
	token := authHeader
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}

	session, err := verifier.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	return &UserClaims{
		UserID: session.UserID,
		Email:  session.Email,
		Name:   session.Name,
		Admin:  session.Admin,
	}, nil
}

// HumaAuth returns a Huma middleware that authenticates operations declaring
// the bearer security scheme and enforces the admin metadata flag. Public
// operations pass through untouched.
func HumaAuth(api huma.API, verifier *auth.Verifier) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op == nil || !operationRequiresAuth(op) {
			next(ctx)
			return
		}

		authHeader := ctx.Header("Authorization")
		if authHeader == "" {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "missing authorization header")
			return
		}

		claims, err := validateBearer(verifier, authHeader)
		if err != nil {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
			return
		}

		if requiresAdmin(op) && !claims.Admin {
			huma.WriteErr(api, ctx, http.StatusForbidden, "admin access required")
			return
		}

		newCtx := context.WithValue(ctx.Context(), UserClaimsKey, claims)
		next(huma.WithContext(ctx, newCtx))
	}
}

// operationRequiresAuth checks if the operation declares bearer auth.
func operationRequiresAuth(op *huma.Operation) bool {
	for _, secReq := range op.Security {
		if _, ok := secReq[SecurityScheme]; ok {
			return true
		}
	}
	return false
}

// requiresAdmin checks operation metadata for the admin requirement.
func requiresAdmin(op *huma.Operation) bool {
	if op.Metadata == nil {
		return false
	}
	if val, ok := op.Metadata[string(MetaKeyRequireAdmin)]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
