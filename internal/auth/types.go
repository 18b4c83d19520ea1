package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the closed set of account roles known to the portal.
type Role string

const (
	RoleMember Role = "member"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

// ParseRole normalizes raw input into a known role, defaulting to member.
func ParseRole(raw string) Role {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleStaff:
		return RoleStaff
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleMember
	}
}

// Account is the credential record owned by this subsystem. Exactly one
// account exists per member; Username equals the member's normalized
// external identifier. An empty PasswordHash means the credential has not
// been set yet.
type Account struct {
	ID           string
	MemberID     string
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// HasPassword reports whether the account credential is set.
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}

// Revocation is a ledger entry for a token invalidated before its natural
// expiry. Entries past ExpiresAt may be purged at any time: an expired
// token already fails verification on expiry grounds.
type Revocation struct {
	TokenID   string
	ExpiresAt time.Time
	RevokedAt time.Time
}

// Claims is the set of fields carried inside a session token.
type Claims struct {
	Username   string `json:"username"`
	Role       string `json:"role"`
	ExternalID string `json:"external_id"`
	jwt.RegisteredClaims
}

// AccountRole returns the typed role carried by the claims.
func (c *Claims) AccountRole() Role {
	return ParseRole(c.Role)
}

// Session is the outcome of a successful provisioning operation. When
// NeedsPasswordSetup is set the account exists but has no credential yet
// and Token is empty; the caller is expected to invoke SetPassword next.
type Session struct {
	Account            *Account
	Token              string
	ExpiresAt          time.Time
	NeedsPasswordSetup bool
}

// MemberStatus summarizes provisioning state for an external identifier.
type MemberStatus struct {
	AccountID          string
	HasAccount         bool
	NeedsPasswordSetup bool
}
