// Package roster exposes read-only access to member records. Members are
// created and removed by an external roster-management process; nothing in
// this service mutates them.
package roster

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound indicates the external identifier is not on the roster.
var ErrNotFound = errors.New("roster: member not found")

// Member is a roster entry.
type Member struct {
	ID         string
	ExternalID string
	Name       string
	Email      string
	Programme  string
}

// Lookup resolves an external identifier to a member record.
type Lookup interface {
	// MemberByExternalID resolves a normalized external identifier, or
	// returns ErrNotFound.
	MemberByExternalID(ctx context.Context, externalID string) (*Member, error)
}

// NormalizeExternalID lower-cases the identifier and strips all whitespace.
// Roster imports occasionally carry stray spaces inside member numbers, so
// normalization removes interior whitespace too, not just the edges.
func NormalizeExternalID(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), "")
}
