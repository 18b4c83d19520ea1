package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 24 * time.Hour

// Tokens signs, verifies and revokes bearer session tokens. The signing
// secret is injected explicitly; there is no package-level secret state.
// The store is consulted only for the revocation ledger.
type Tokens struct {
	secret []byte
	store  CredentialStore
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures Tokens.
type TokenOption func(*Tokens)

// WithTTL overrides the default 24h token lifetime.
func WithTTL(ttl time.Duration) TokenOption {
	return func(t *Tokens) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(t *Tokens) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			t.issuer = issuer
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(t *Tokens) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTokens constructs the token service.
func NewTokens(secret []byte, store CredentialStore, opts ...TokenOption) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if store == nil {
		return nil, errors.New("auth: credential store is required")
	}
	t := &Tokens{
		secret: secret,
		store:  store,
		issuer: "rollcall",
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// TTL returns the configured token lifetime.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// Issue signs a session token for the account. The jti is fresh per call
// so two tokens for the same account revoke independently.
func (t *Tokens) Issue(account *Account) (string, Claims, error) {
	if account == nil || account.ID == "" {
		return "", Claims{}, errors.New("auth: account is required")
	}
	now := t.now().UTC()
	claims := Claims{
		Username:   account.Username,
		Role:       string(account.Role),
		ExternalID: account.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature and expiry before touching the store, so
// malformed tokens never cost a revocation lookup. Only a token that
// passes all three checks yields claims.
func (t *Tokens) Verify(ctx context.Context, raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformedToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSignature
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithIssuer(t.issuer))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformedToken
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrMalformedToken
	}
	revoked, err := t.store.FindRevocation(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

// Revoke inserts the token's jti into the revocation ledger. The signature
// need not verify: logout of a token signed with a rotated secret should
// still be bookkept. The jti and expiry must be extractable, otherwise the
// token is Malformed. Revoking an already-revoked token is a no-op success.
func (t *Tokens) Revoke(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrMalformedToken
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return ErrMalformedToken
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return ErrMalformedToken
	}
	if err := t.store.InsertRevocation(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("insert revocation: %w", err)
	}
	return nil
}
