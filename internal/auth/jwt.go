// Package auth verifies session tokens issued by the platform's identity
// service. Tokens are HS256 JWTs signed with a shared secret; user accounts
// themselves live in the identity service, not here.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrMissingClaims = errors.New("missing required claims")
)

// SessionClaims represents the claims in a platform session JWT.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"sub"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	// Admin marks platform operators who may reach the admin surface.
	Admin bool `json:"admin,omitempty"`
}

// Verifier validates HS256 session tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a token verifier with the shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyToken parses and validates a session token.
func (v *Verifier) VerifyToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

// IssueToken mints a session token. Production tokens come from the identity
// service; this is used by tests and local development.
func (v *Verifier) IssueToken(userID, email string, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Email:  email,
		Admin:  admin,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
