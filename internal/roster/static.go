package roster

import "context"

var _ Lookup = (Static)(nil)

// Static is a fixed in-memory roster, used for local development without a
// database and in tests.
type Static []Member

// MemberByExternalID resolves against the fixed list.
func (s Static) MemberByExternalID(_ context.Context, externalID string) (*Member, error) {
	for i := range s {
		if NormalizeExternalID(s[i].ExternalID) == externalID {
			m := s[i]
			return &m, nil
		}
	}
	return nil, ErrNotFound
}
