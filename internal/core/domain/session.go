package domain

import "time"

// RefreshSession represents a persisted refresh session. The raw token is
// opaque and handed to the client once; only its SHA-256 hash is stored.
type RefreshSession struct {
	ID        string
	AccountID string
	TokenHash string
	IssuedIP  *string
	IssuedUA  *string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Active reports whether the session can still mint access tokens at the
// supplied moment. A revoked session never becomes active again.
func (s RefreshSession) Active(at time.Time) bool {
	if s.Revoked {
		return false
	}
	return s.ExpiresAt.After(at)
}

// PasswordResetToken represents a single-use password reset token hash.
type PasswordResetToken struct {
	ID        string
	AccountID string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Usable reports whether the token can still redeem a reset at the supplied moment.
func (t PasswordResetToken) Usable(at time.Time) bool {
	if t.UsedAt != nil {
		return false
	}
	return t.ExpiresAt.After(at)
}
