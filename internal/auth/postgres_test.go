package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func accountRows(id, memberID, username, hash string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "member_id", "username", "password_hash", "role", "created_at", "last_login",
	}).AddRow(id, memberID, username, hash, "member", time.Now(), nil)
}

func TestPGInsertAccountIfAbsentLoserReadsWinner(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	// on conflict do nothing: zero rows affected means another request won
	// the insert race; the adapter falls through to reading that row.
	mock.ExpectExec("insert into accounts").
		WithArgs(sqlmock.AnyArg(), "mem-1", "a1234567", "member").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select (.+) from accounts where member_id").
		WithArgs("mem-1").
		WillReturnRows(accountRows("acct-9", "mem-1", "a1234567", ""))

	account, err := store.InsertAccountIfAbsent(context.Background(), "mem-1", "a1234567", RoleMember)
	if err != nil {
		t.Fatalf("InsertAccountIfAbsent: %v", err)
	}
	if account.ID != "acct-9" {
		t.Fatalf("expected winner's row, got %s", account.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGUpdateCredentialConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectExec("update accounts set password_hash").
		WithArgs("hash-1", "acct-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	set, err := store.UpdateCredential(context.Background(), "acct-1", "hash-1")
	if err != nil {
		t.Fatalf("UpdateCredential: %v", err)
	}
	if !set {
		t.Fatal("expected credential set")
	}

	// rows-affected 0: the credential was no longer empty.
	mock.ExpectExec("update accounts set password_hash").
		WithArgs("hash-2", "acct-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	set, err = store.UpdateCredential(context.Background(), "acct-1", "hash-2")
	if err != nil {
		t.Fatalf("UpdateCredential: %v", err)
	}
	if set {
		t.Fatal("expected conflict, not success")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGAccountByMemberNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery("select (.+) from accounts where member_id").
		WithArgs("mem-404").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.AccountByMember(context.Background(), "mem-404"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGAccountByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery(`select (.+) from accounts where lower\(username\)`).
		WithArgs("a1234567").
		WillReturnRows(accountRows("acct-1", "mem-1", "a1234567", "hash"))

	account, err := store.AccountByUsername(context.Background(), "a1234567")
	if err != nil {
		t.Fatalf("AccountByUsername: %v", err)
	}
	if account.ID != "acct-1" {
		t.Fatalf("unexpected account: %s", account.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGRevocationLedger(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	mock.ExpectExec("insert into revoked_tokens").
		WithArgs(sqlmock.AnyArg(), "jti-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := store.InsertRevocation(ctx, "jti-1", expiry); err != nil {
		t.Fatalf("InsertRevocation: %v", err)
	}

	// Duplicate insert hits the unique index and affects zero rows; still a
	// no-op success.
	mock.ExpectExec("insert into revoked_tokens").
		WithArgs(sqlmock.AnyArg(), "jti-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.InsertRevocation(ctx, "jti-1", expiry); err != nil {
		t.Fatalf("repeat InsertRevocation: %v", err)
	}

	mock.ExpectQuery("select 1 from revoked_tokens").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	revoked, err := store.FindRevocation(ctx, "jti-1")
	if err != nil {
		t.Fatalf("FindRevocation: %v", err)
	}
	if !revoked {
		t.Fatal("expected revoked")
	}

	mock.ExpectQuery("select 1 from revoked_tokens").
		WithArgs("jti-2").
		WillReturnError(sql.ErrNoRows)
	revoked, err = store.FindRevocation(ctx, "jti-2")
	if err != nil {
		t.Fatalf("FindRevocation: %v", err)
	}
	if revoked {
		t.Fatal("expected not revoked")
	}

	mock.ExpectExec("delete from revoked_tokens where expiry").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	purged, err := store.PurgeExpiredRevocations(ctx, time.Now())
	if err != nil {
		t.Fatalf("PurgeExpiredRevocations: %v", err)
	}
	if purged != 3 {
		t.Fatalf("purged = %d, want 3", purged)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
