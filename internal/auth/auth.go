// Package auth provides minimal authentication helpers.
//
// It intentionally avoids policy decisions and storage concerns.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken is a simple validator for a single shared token.
// It is intended only for development and proofs of concept.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// Claims is the claim set minted for and expected from callers of the
// HTTP API's protected routes.
type Claims struct {
	Subject string   `json:"sub"`
	Scopes  []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether scope is present in the token's scope list.
func (c Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// JWTValidator validates HMAC-signed bearer tokens (IssueToken signs with
// HS256). ValidateClaims returns the parsed Claims of the token it is given;
// Validate alone satisfies Validator for callers that only need a pass/fail
// signal.
type JWTValidator struct {
	Secret []byte
	Issuer string
}

func (v JWTValidator) Validate(token string) error {
	_, err := v.ValidateClaims(token)
	return err
}

// ValidateClaims parses and verifies token, returning its Claims on
// success. Expired, not-yet-valid, wrong-issuer, or badly signed tokens are
// all reported as ErrUnauthorized (wrapped, so errors.Is still matches).
func (v JWTValidator) ValidateClaims(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Method.Alg())
		}
		return v.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if v.Issuer != "" && claims.Issuer != v.Issuer {
		return Claims{}, fmt.Errorf("%w: issuer mismatch", ErrUnauthorized)
	}
	return claims, nil
}

// IssueToken mints an HS256 token for subject with the given scopes and
// ttl, signed with v.Secret. Used by dev tooling and tests; production
// token issuance is expected to live behind an external identity provider.
func (v JWTValidator) IssueToken(subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		Scopes:  scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.Secret)
}
