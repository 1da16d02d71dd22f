// Package identity issues and verifies the credential tokens used by both the
// HTTP API and the WebSocket handshake, and hashes account passwords.
package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"Murmur/internal/errs"
)

// Verifier signs and verifies HS256 access tokens. The subject claim carries
// the user identity.
type Verifier struct {
	signKey []byte
	ttl     time.Duration
}

// NewVerifier constructs a Verifier with the given signing key and token TTL.
func NewVerifier(signKey []byte, ttl time.Duration) *Verifier {
	return &Verifier{signKey: signKey, ttl: ttl}
}

// IssueToken creates a signed access token for the given user id.
func (v *Verifier) IssueToken(userID string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(v.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(v.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// VerifyToken validates the token and returns the user id it was issued for.
// Any parse, signature, or expiry failure maps to errs.ErrAuth.
func (v *Verifier) VerifyToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", errs.ErrAuth)
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signKey, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", errs.ErrAuth)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", errs.ErrAuth)
	}
	return claims.Subject, nil
}

// HashPassword derives a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
