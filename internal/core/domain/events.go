package domain

import "time"

// LoginSucceededEvent is published after a fully successful authentication.
type LoginSucceededEvent struct {
	EventID   string
	AccountID string
	Email     string
	IP        string
	UserAgent string
	At        time.Time
}

// LoginFailedEvent is published for every refused authentication attempt.
type LoginFailedEvent struct {
	EventID  string
	Email    string
	Reason   string
	Attempts int
	IP       string
	At       time.Time
}

// AccountLockedEvent is published when a failed attempt trips the lockout threshold.
type AccountLockedEvent struct {
	EventID     string
	AccountID   string
	Email       string
	Attempts    int
	LockedUntil time.Time
	At          time.Time
}

// SessionRevokedEvent is published when refresh sessions are revoked.
type SessionRevokedEvent struct {
	EventID   string
	AccountID string
	SessionID string
	Reason    string
	Count     int
	At        time.Time
}

// PasswordChangedEvent is published after a password change or reset.
type PasswordChangedEvent struct {
	EventID         string
	AccountID       string
	Method          string
	SessionsRevoked int
	At              time.Time
}

// TwoFactorChangedEvent is published when TOTP is enabled or disabled.
type TwoFactorChangedEvent struct {
	EventID   string
	AccountID string
	Enabled   bool
	At        time.Time
}
