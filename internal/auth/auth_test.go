package auth

import (
	"errors"
	"testing"
	"time"
)

func TestStaticTokenValidate(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFuncValidator(t *testing.T) {
	validator := FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	})

	if err := validator.Validate("bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad token, got %v", err)
	}
	if err := validator.Validate("ok"); err != nil {
		t.Fatalf("expected success for ok token, got %v", err)
	}
}

func TestJWTValidatorRoundTrip(t *testing.T) {
	v := JWTValidator{Secret: []byte("test-secret"), Issuer: "morphgrid"}

	token, err := v.IssueToken("user-1", []string{"connections:read"}, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := v.ValidateClaims(token)
	if err != nil {
		t.Fatalf("validate claims: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %q", claims.Subject)
	}
	if !claims.HasScope("connections:read") {
		t.Fatalf("expected scope connections:read, got %v", claims.Scopes)
	}
}

func TestJWTValidatorRejectsWrongSecret(t *testing.T) {
	issuer := JWTValidator{Secret: []byte("secret-a"), Issuer: "morphgrid"}
	verifier := JWTValidator{Secret: []byte("secret-b"), Issuer: "morphgrid"}

	token, err := issuer.IssueToken("user-1", nil, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if err := verifier.Validate(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestJWTValidatorRejectsExpiredToken(t *testing.T) {
	v := JWTValidator{Secret: []byte("test-secret"), Issuer: "morphgrid"}

	token, err := v.IssueToken("user-1", nil, -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if err := v.Validate(token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for expired token, got %v", err)
	}
}
