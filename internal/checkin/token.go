package checkin

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenPurpose = "unsubscribe"

// Unsubscribe links live in email archives for a long time, so the token
// outlasts any single check-in cycle.
const defaultTokenTTL = 90 * 24 * time.Hour

type unsubscribeClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// TokenSigner mints and verifies the signed tokens embedded in unsubscribe
// links. The token carries only the subscription ID, never the address.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), ttl: defaultTokenTTL}
}

func (s *TokenSigner) Configured() bool {
	return len(s.secret) > 0
}

// Sign returns a token authorizing unsubscription of one subscription.
func (s *TokenSigner) Sign(subscriptionID string) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("token signer not configured: missing secret")
	}
	now := time.Now()
	claims := unsubscribeClaims{
		Purpose: tokenPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subscriptionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks a token and returns the subscription ID it authorizes.
func (s *TokenSigner) Verify(token string) (string, error) {
	var claims unsubscribeClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", fmt.Errorf("parse unsubscribe token: %w", err)
	}
	if !parsed.Valid || claims.Purpose != tokenPurpose || claims.Subject == "" {
		return "", fmt.Errorf("invalid unsubscribe token")
	}
	return claims.Subject, nil
}
