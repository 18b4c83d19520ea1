package auth

import (
	"context"
	"time"
)

// CredentialStore describes the persistence operations required by the
// token service and the provisioning state machine. Implementations must
// make InsertAccountIfAbsent and UpdateCredential atomic: "the row already
// existed" and "the credential was already set" are normal return values,
// never errors to be caught.
type CredentialStore interface {
	// AccountByID returns the account with the given id or ErrNotFound.
	AccountByID(ctx context.Context, id string) (*Account, error)
	// AccountByMember returns the account owned by the member or ErrNotFound.
	AccountByMember(ctx context.Context, memberID string) (*Account, error)
	// AccountByUsername returns the account with the given normalized
	// username or ErrNotFound.
	AccountByUsername(ctx context.Context, username string) (*Account, error)

	// InsertAccountIfAbsent creates an account with an empty credential for
	// the member unless one already exists, and returns the persisted row
	// either way. Concurrent calls for the same member observe one row.
	InsertAccountIfAbsent(ctx context.Context, memberID, username string, role Role) (*Account, error)

	// UpdateCredential stores the password hash if and only if the account
	// credential is still empty. Returns false when the credential was
	// already set (the caller lost the race or retried after success).
	UpdateCredential(ctx context.Context, accountID, passwordHash string) (bool, error)

	// TouchLastLogin records a successful authentication.
	TouchLastLogin(ctx context.Context, accountID string, at time.Time) error

	// FindRevocation reports whether a revocation entry exists for tokenID.
	FindRevocation(ctx context.Context, tokenID string) (bool, error)
	// InsertRevocation records the revocation. Idempotent: inserting an
	// already-revoked tokenID is a no-op success.
	InsertRevocation(ctx context.Context, tokenID string, expiresAt time.Time) error
	// PurgeExpiredRevocations removes ledger entries past their expiry and
	// returns how many were removed. Purely an optimization.
	PurgeExpiredRevocations(ctx context.Context, now time.Time) (int64, error)
}
