package auth

import (
	"context"
	"fmt"
	"slices"
)

// Guard performs per-request policy checks on verified token claims.
type Guard struct {
	tokens *Tokens
}

// NewGuard constructs a guard over the token service.
func NewGuard(tokens *Tokens) *Guard {
	return &Guard{tokens: tokens}
}

// RequireAuthenticated verifies the bearer token and returns its claims.
// Every verification failure surfaces as ErrUnauthorized so a caller
// cannot distinguish expired from revoked from tampered; the specific
// reason is preserved in the wrapped cause for internal logging.
func (g *Guard) RequireAuthenticated(ctx context.Context, rawToken string) (*Claims, error) {
	claims, err := g.tokens.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return claims, nil
}

// RequireRole checks claims.role against the allowed set.
func (g *Guard) RequireRole(claims *Claims, allowed ...Role) error {
	if claims == nil {
		return ErrUnauthorized
	}
	if !slices.Contains(allowed, claims.AccountRole()) {
		return ErrForbidden
	}
	return nil
}

// RequireOwnerOrRole allows the request when the claims subject owns the
// resource, or when the claims carry one of the privileged roles. Must be
// evaluated after RequireAuthenticated.
func (g *Guard) RequireOwnerOrRole(claims *Claims, resourceOwnerID string, privileged ...Role) error {
	if claims == nil {
		return ErrUnauthorized
	}
	if slices.Contains(privileged, claims.AccountRole()) {
		return nil
	}
	if resourceOwnerID != "" && claims.Subject == resourceOwnerID {
		return nil
	}
	return ErrForbidden
}
