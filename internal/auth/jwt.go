// Package auth validates the bearer tokens presented to the API. Tokens are
// minted by the myFEvent account service; this service never issues them.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the account service's token claims.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 tokens signed with the shared secret.
type Verifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewVerifier creates a verifier. An empty issuer skips the iss check; leeway
// absorbs clock skew on exp and nbf.
func NewVerifier(secret, issuer string, leeway time.Duration) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Verifier{secret: []byte(secret), opts: opts}
}

// Validate parses tokenString and returns its claims. Any failure, including a
// token without a user id, is ErrInvalidToken.
func (v *Verifier) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.opts...)
	if err != nil || !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
