// Package identity issues and verifies the bearer tokens that guard the
// bot's administrative HTTP endpoints.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleAdmin is the only role the bot hands out.
const RoleAdmin = "admin"

// DefaultTTL is the lifetime of an admin token.
const DefaultTTL = 8 * time.Hour

// ErrNoSecret is returned when no signing secret is configured.
var ErrNoSecret = errors.New("token signing secret is empty")

// Claims are the JWT claims of an admin token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenIssuer signs and verifies HS256 admin tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. issuer becomes the "iss" claim,
// normally the public URL of the bot.
func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// IssueAdmin creates a signed admin token for subject.
func (t *TokenIssuer) IssueAdmin(subject string) (string, error) {
	now := t.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Role: RoleAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (t *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}
