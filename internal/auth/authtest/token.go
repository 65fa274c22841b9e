// Package authtest signs tokens the way the account service does, for tests
// that drive authenticated routes.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/myfevent/backend/internal/auth"
)

// Sign signs claims with secret using HS256.
func Sign(tb testing.TB, secret string, claims auth.Claims) string {
	tb.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		tb.Fatalf("sign token: %v", err)
	}
	return tok
}

// Token returns a token for userID that expires after ttl.
func Token(tb testing.TB, secret string, userID uuid.UUID, ttl time.Duration) string {
	tb.Helper()
	now := time.Now()
	return Sign(tb, secret, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
}
