package roster

import (
	"context"
	"database/sql"
)

var _ Lookup = (*PG)(nil)

// PG implements Lookup over PostgreSQL.
type PG struct {
	db *sql.DB
}

// NewPG constructs a Postgres-backed lookup.
func NewPG(db *sql.DB) *PG {
	return &PG{db: db}
}

// MemberByExternalID matches on the lower-cased, trimmed external id so
// rows imported with trailing spaces still resolve.
func (p *PG) MemberByExternalID(ctx context.Context, externalID string) (*Member, error) {
	row := p.db.QueryRowContext(ctx,
		`select id, external_id, name, email, programme from members
		 where lower(trim(external_id)) = $1`, externalID)
	var m Member
	if err := row.Scan(&m.ID, &m.ExternalID, &m.Name, &m.Email, &m.Programme); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}
