package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, opts ...IssuerOption) *TokenIssuer {
	t.Helper()
	ti, err := NewTokenIssuer("access-secret-1", "refresh-secret-2", opts...)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return ti
}

func TestNewTokenIssuerValidation(t *testing.T) {
	if _, err := NewTokenIssuer("", "refresh"); err == nil {
		t.Fatalf("expected error for missing access secret")
	}
	if _, err := NewTokenIssuer("access", ""); err == nil {
		t.Fatalf("expected error for missing refresh secret")
	}
	if _, err := NewTokenIssuer("same", "same"); err == nil {
		t.Fatalf("expected error for identical secrets")
	}
}

func TestIssueAndVerifyAccess(t *testing.T) {
	ti := newTestIssuer(t)

	token, exp, err := ti.IssueAccess("user-1", "a@b.io")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	claims, err := ti.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Email != "a@b.io" {
		t.Fatalf("unexpected email: %s", claims.Email)
	}
	if claims.ID == "" {
		t.Fatalf("expected a jti")
	}
}

func TestVerifyAccessExpiredVsInvalid(t *testing.T) {
	now := time.Now()
	ti := newTestIssuer(t, WithClock(func() time.Time { return now }))

	token, _, err := ti.IssueAccess("user-1", "a@b.io")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	// Jump past the access TTL; expiry must be distinguishable.
	now = now.Add(16 * time.Minute)
	if _, err := ti.VerifyAccess(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}

	if _, err := ti.VerifyAccess("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
	if _, err := ti.VerifyAccess(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestAccessAndRefreshSecretsAreDistinct(t *testing.T) {
	ti := newTestIssuer(t)

	refresh, _, err := ti.IssueRefresh("user-1", "a@b.io")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	// A refresh token must never pass the access guard.
	if _, err := ti.VerifyAccess(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for refresh-as-access, got %v", err)
	}

	access, _, err := ti.IssueAccess("user-1", "a@b.io")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := ti.VerifyRefresh(access); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for access-as-refresh, got %v", err)
	}
}

func TestVerifyRefreshIgnoresSignatureExpirySplit(t *testing.T) {
	now := time.Now()
	ti := newTestIssuer(t, WithClock(func() time.Time { return now }), WithRefreshTTL(time.Hour))

	token, _, err := ti.IssueRefresh("user-1", "a@b.io")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	now = now.Add(2 * time.Hour)
	if _, err := ti.VerifyRefresh(token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken after signature expiry, got %v", err)
	}
}
