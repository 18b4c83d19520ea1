package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rollcall.org/internal/roster"
)

// Service is the account-provisioning state machine. It turns a roster
// identifier into an authenticated session, auto-creating the account on
// the first login attempt for a known member. Credential state moves
// exactly once from empty to set, via SetPassword.
type Service struct {
	roster roster.Lookup
	store  CredentialStore
	tokens *Tokens
	now    func() time.Time
}

// ServiceOption configures Service.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source (useful for tests).
func WithServiceClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the provisioning service.
func NewService(lookup roster.Lookup, store CredentialStore, tokens *Tokens, opts ...ServiceOption) (*Service, error) {
	if lookup == nil {
		return nil, errors.New("auth: roster lookup is required")
	}
	if store == nil {
		return nil, errors.New("auth: credential store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	s := &Service{
		roster: lookup,
		store:  store,
		tokens: tokens,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tokens exposes the underlying token service.
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Authenticate resolves the external identifier and either provisions,
// prompts for password setup, or verifies the password and issues a token.
//
// A known member with no account gets one implicitly with an empty
// credential; in that case (and whenever the credential is still empty)
// the result is a NeedsPasswordSetup session with no token, regardless of
// the supplied password. A wrong password yields ErrInvalidCredential and
// nothing more specific: the caller must not learn which part was wrong.
func (s *Service) Authenticate(ctx context.Context, externalID, password string) (*Session, error) {
	normalized := roster.NormalizeExternalID(externalID)
	if normalized == "" {
		return nil, ErrInvalidCredential
	}

	member, err := s.roster.MemberByExternalID(ctx, normalized)
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("roster lookup: %w", err)
	}

	account, err := s.store.AccountByMember(ctx, member.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		// First login attempt for a known member: provision the account
		// with an empty credential. The insert is conditioned on absence;
		// the loser of a concurrent first-login reads the winner's row.
		account, err = s.store.InsertAccountIfAbsent(ctx, member.ID, normalized, RoleMember)
		if err != nil {
			return nil, fmt.Errorf("provision account: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("account lookup: %w", err)
	}

	if !account.HasPassword() {
		return &Session{Account: account, NeedsPasswordSetup: true}, nil
	}

	if err := VerifyPassword(account.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredential
	}

	loginAt := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, account.ID, loginAt); err != nil {
		return nil, fmt.Errorf("touch last login: %w", err)
	}
	account.LastLoginAt = &loginAt
	token, claims, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// SetPassword stores the credential for an account that does not have one
// yet, and returns a fresh session token. The update is a conditional
// write on credential-empty; a concurrent or repeated call loses the race
// and gets ErrPasswordAlreadySet, never a silent overwrite.
func (s *Service) SetPassword(ctx context.Context, accountID, password string) (*Session, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, ErrNotFound
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	account, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	if account.HasPassword() {
		return nil, ErrPasswordAlreadySet
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	set, err := s.store.UpdateCredential(ctx, account.ID, hash)
	if err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}
	if !set {
		return nil, ErrPasswordAlreadySet
	}
	account.PasswordHash = hash

	token, claims, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// VerifyMember reports provisioning state for an external identifier and,
// for a known member with no account yet, creates the empty-credential
// account so the caller can proceed straight to password setup.
func (s *Service) VerifyMember(ctx context.Context, externalID string) (*MemberStatus, error) {
	normalized := roster.NormalizeExternalID(externalID)
	if normalized == "" {
		return nil, ErrMemberNotFound
	}

	member, err := s.roster.MemberByExternalID(ctx, normalized)
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("roster lookup: %w", err)
	}

	account, err := s.store.AccountByMember(ctx, member.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		account, err = s.store.InsertAccountIfAbsent(ctx, member.ID, normalized, RoleMember)
		if err != nil {
			return nil, fmt.Errorf("provision account: %w", err)
		}
		return &MemberStatus{AccountID: account.ID, HasAccount: false, NeedsPasswordSetup: true}, nil
	case err != nil:
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	return &MemberStatus{
		AccountID:          account.ID,
		HasAccount:         true,
		NeedsPasswordSetup: !account.HasPassword(),
	}, nil
}

// Profile returns the account's public fields.
func (s *Service) Profile(ctx context.Context, accountID string) (*Account, error) {
	account, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	return account, nil
}

// ProfileByUsername returns the account for a normalized login name.
// Serves the staff lookup route; the role check happens at the caller.
func (s *Service) ProfileByUsername(ctx context.Context, username string) (*Account, error) {
	normalized := roster.NormalizeExternalID(username)
	if normalized == "" {
		return nil, ErrNotFound
	}
	account, err := s.store.AccountByUsername(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	return account, nil
}

// Logout revokes the presented token. Repeating a logout is a no-op.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	return s.tokens.Revoke(ctx, rawToken)
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: must be at least 8 characters", ErrWeakPassword)
	}
	// bcrypt ignores input beyond 72 bytes; reject instead of truncating.
	if len(password) > 72 {
		return fmt.Errorf("%w: must be at most 72 characters", ErrWeakPassword)
	}
	return nil
}
