package auth

import (
	"context"
	"sync"
	"time"

	"rollcall.org/internal/ids"
)

var _ CredentialStore = (*MemStore)(nil)

// MemStore is an in-memory CredentialStore for tests and local development.
// It honors the same atomicity contract as the SQL adapter: account
// creation is insert-if-absent, the credential update is a compare-and-swap
// on credential-empty, and revocation inserts are idempotent.
type MemStore struct {
	mu          sync.Mutex
	byID        map[string]*Account
	byMember    map[string]string
	revocations map[string]Revocation
	now         func() time.Time
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:        make(map[string]*Account),
		byMember:    make(map[string]string),
		revocations: make(map[string]Revocation),
		now:         time.Now,
	}
}

func (m *MemStore) clone(a *Account) *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

func (m *MemStore) AccountByID(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.clone(a), nil
}

func (m *MemStore) AccountByMember(_ context.Context, memberID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byMember[memberID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.clone(m.byID[id]), nil
}

func (m *MemStore) AccountByUsername(_ context.Context, username string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Username == username {
			return m.clone(a), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) InsertAccountIfAbsent(_ context.Context, memberID, username string, role Role) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byMember[memberID]; ok {
		return m.clone(m.byID[id]), nil
	}
	a := &Account{
		ID:        ids.New(),
		MemberID:  memberID,
		Username:  username,
		Role:      role,
		CreatedAt: m.now().UTC(),
	}
	m.byID[a.ID] = a
	m.byMember[memberID] = a.ID
	return m.clone(a), nil
}

func (m *MemStore) UpdateCredential(_ context.Context, accountID, passwordHash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[accountID]
	if !ok {
		return false, ErrNotFound
	}
	if a.PasswordHash != "" {
		return false, nil
	}
	a.PasswordHash = passwordHash
	return true, nil
}

func (m *MemStore) TouchLastLogin(_ context.Context, accountID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[accountID]
	if !ok {
		return ErrNotFound
	}
	t := at
	a.LastLoginAt = &t
	return nil
}

func (m *MemStore) FindRevocation(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revocations[tokenID]
	return ok, nil
}

func (m *MemStore) InsertRevocation(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revocations[tokenID]; ok {
		return nil
	}
	m.revocations[tokenID] = Revocation{
		TokenID:   tokenID,
		ExpiresAt: expiresAt.UTC(),
		RevokedAt: m.now().UTC(),
	}
	return nil
}

func (m *MemStore) PurgeExpiredRevocations(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, rev := range m.revocations {
		if rev.ExpiresAt.Before(now) {
			delete(m.revocations, id)
			purged++
		}
	}
	return purged, nil
}
