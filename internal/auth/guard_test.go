package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func claimsWith(role Role, subject string) *Claims {
	return &Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject,
		},
	}
}

func TestRequireAuthenticated(t *testing.T) {
	tokens, _ := newTestTokens(t)
	guard := NewGuard(tokens)

	raw, _, err := tokens.Issue(testAccount())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := guard.RequireAuthenticated(context.Background(), raw)
	if err != nil {
		t.Fatalf("RequireAuthenticated: %v", err)
	}
	if claims.Subject != "acct-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}

	if _, err := guard.RequireAuthenticated(context.Background(), "bogus"); err == nil {
		t.Fatal("expected rejection for bogus token")
	}
}

// Every rejection kind collapses to ErrUnauthorized at the guard so
// callers cannot tell expired from revoked from tampered. The cause
// stays in the chain for logging.
func TestRequireAuthenticatedCollapsesRejections(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	backdated, _ := newTestTokens(t, WithTTL(time.Minute), WithClock(func() time.Time { return past }))
	expired, _, err := backdated.Issue(testAccount())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	foreignTokens, err := NewTokens([]byte("other-secret"), NewMemStore())
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	tampered, _, err := foreignTokens.Issue(testAccount())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	tokens, _ := newTestTokens(t)
	guard := NewGuard(tokens)

	revoked, _, err := tokens.Issue(testAccount())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := tokens.Revoke(context.Background(), revoked); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	cases := []struct {
		name  string
		raw   string
		cause error
	}{
		{"expired", expired, ErrExpired},
		{"tampered", tampered, ErrInvalidSignature},
		{"revoked", revoked, ErrRevoked},
		{"malformed", "not.a.token", ErrMalformedToken},
	}
	for _, tc := range cases {
		_, err := guard.RequireAuthenticated(context.Background(), tc.raw)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", tc.name, err)
		}
		if !errors.Is(err, tc.cause) {
			t.Fatalf("%s: expected wrapped %v, got %v", tc.name, tc.cause, err)
		}
	}
}

func TestRequireRole(t *testing.T) {
	guard := NewGuard(nil)

	if err := guard.RequireRole(claimsWith(RoleMember, "acct-1"), RoleAdmin, RoleStaff); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := guard.RequireRole(claimsWith(RoleStaff, "acct-1"), RoleAdmin, RoleStaff); err != nil {
		t.Fatalf("staff should be allowed: %v", err)
	}
	if err := guard.RequireRole(nil, RoleAdmin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for missing claims, got %v", err)
	}
}

func TestRequireOwnerOrRole(t *testing.T) {
	guard := NewGuard(nil)

	// Owner passes regardless of role.
	if err := guard.RequireOwnerOrRole(claimsWith(RoleMember, "42"), "42", RoleAdmin); err != nil {
		t.Fatalf("owner should be allowed: %v", err)
	}
	// Privileged role passes regardless of ownership.
	if err := guard.RequireOwnerOrRole(claimsWith(RoleAdmin, "1"), "42", RoleAdmin); err != nil {
		t.Fatalf("admin should be allowed: %v", err)
	}
	// Neither owner nor privileged.
	if err := guard.RequireOwnerOrRole(claimsWith(RoleMember, "1"), "42", RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	// Missing claims is unauthorized, not forbidden.
	if err := guard.RequireOwnerOrRole(nil, "42", RoleAdmin); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	// Empty owner id never matches an empty subject by accident.
	if err := guard.RequireOwnerOrRole(claimsWith(RoleMember, ""), "", RoleAdmin); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for empty ids, got %v", err)
	}
}
