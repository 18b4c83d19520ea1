package auth

import (
	"context"
	"database/sql"
	"time"

	"rollcall.org/internal/ids"
)

var _ CredentialStore = (*PGStore)(nil)

// PGStore implements CredentialStore using PostgreSQL. All provisioning
// and token logic is written against the interface; dialect specifics
// stay inside this file.
type PGStore struct {
	db *sql.DB
}

// NewPGStore constructs the Postgres adapter.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const accountColumns = `id, member_id, username, password_hash, role, created_at, last_login`

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	var (
		a         Account
		role      string
		lastLogin sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.MemberID, &a.Username, &a.PasswordHash, &role, &a.CreatedAt, &lastLogin); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Role = ParseRole(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	return &a, nil
}

func (s *PGStore) AccountByID(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where id=$1`, id)
	return scanAccount(row)
}

func (s *PGStore) AccountByMember(ctx context.Context, memberID string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where member_id=$1`, memberID)
	return scanAccount(row)
}

func (s *PGStore) AccountByUsername(ctx context.Context, username string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+accountColumns+` from accounts where lower(username)=$1`, username)
	return scanAccount(row)
}

// InsertAccountIfAbsent relies on the unique constraint on member_id. The
// losing side of a concurrent first-login inserts zero rows and falls
// through to reading the winner's row.
func (s *PGStore) InsertAccountIfAbsent(ctx context.Context, memberID, username string, role Role) (*Account, error) {
	id := ids.New()
	_, err := s.db.ExecContext(ctx,
		`insert into accounts(id, member_id, username, password_hash, role)
		 values($1,$2,$3,'',$4)
		 on conflict (member_id) do nothing`,
		id, memberID, username, string(role),
	)
	if err != nil {
		return nil, err
	}
	return s.AccountByMember(ctx, memberID)
}

// UpdateCredential is the only transition out of the empty-credential
// state. The predicate on password_hash makes it a compare-and-swap: at
// most one concurrent caller observes rows-affected=1.
func (s *PGStore) UpdateCredential(ctx context.Context, accountID, passwordHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`update accounts set password_hash=$1 where id=$2 and password_hash=''`,
		passwordHash, accountID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PGStore) TouchLastLogin(ctx context.Context, accountID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update accounts set last_login=$1 where id=$2`, at, accountID)
	return err
}

func (s *PGStore) FindRevocation(ctx context.Context, tokenID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`select 1 from revoked_tokens where token_id=$1`, tokenID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *PGStore) InsertRevocation(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`insert into revoked_tokens(id, token_id, expiry)
		 values($1,$2,$3)
		 on conflict (token_id) do nothing`,
		ids.New(), tokenID, expiresAt.UTC(),
	)
	return err
}

func (s *PGStore) PurgeExpiredRevocations(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from revoked_tokens where expiry < $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
