package domain

import (
	"strings"
	"time"
)

// Role enumerates the workflow roles an account can hold.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RolePreparer     Role = "PREPARER"
	RoleIPDFReviewer Role = "IPDF-REVIEWER"
	RoleIQPReviewer  Role = "IQP-REVIEWER"
	RoleEndUser      Role = "END_USER"
)

// Roles lists every valid role value.
func Roles() []Role {
	return []Role{RoleAdmin, RolePreparer, RoleIPDFReviewer, RoleIQPReviewer, RoleEndUser}
}

// ParseRole validates and normalizes a role string.
func ParseRole(value string) (Role, bool) {
	candidate := Role(strings.ToUpper(strings.TrimSpace(value)))
	for _, role := range Roles() {
		if candidate == role {
			return role, true
		}
	}
	return "", false
}

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID               string
	Email            string
	PasswordHash     string
	Role             Role
	DepartmentID     string
	IsActive         bool
	LoginAttempts    int
	LockedUntil      *time.Time
	TOTPSecret       string
	TOTPEnabled      bool
	BackupCodeHashes []string
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Locked reports whether authentication must be refused at the supplied moment.
func (a Account) Locked(at time.Time) bool {
	return a.LockedUntil != nil && at.Before(*a.LockedUntil)
}

// Sanitize returns a copy safe to hand to callers outside the IAM core.
// Password hash, TOTP secret, and backup codes never leave the core.
func (a Account) Sanitize() Account {
	clean := a
	clean.PasswordHash = ""
	clean.TOTPSecret = ""
	clean.BackupCodeHashes = nil
	return clean
}

// AccessClaims is the ephemeral, verified identity carried by an access token.
// It is never persisted.
type AccessClaims struct {
	Subject      string
	Email        string
	Role         Role
	DepartmentID string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the claims are past their expiry at the supplied moment.
func (c AccessClaims) Expired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}
