package port

import (
	"context"
	"time"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
)

// LockoutPolicy configures the failed-attempt accounting applied by the
// storage layer.
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

// FailedAttemptResult reports the account state after an atomic failed-attempt update.
type FailedAttemptResult struct {
	Attempts    int
	LockedUntil *time.Time
}

// Locked reports whether the update tripped (or left in place) a lock.
func (r FailedAttemptResult) Locked(at time.Time) bool {
	return r.LockedUntil != nil && at.Before(*r.LockedUntil)
}

// AccountRepository exposes persistence behavior for accounts.
//
// RecordFailedAttempt must be a single atomic conditional update: it
// increments the counter (or lazily resets it to 1 when a previous lock has
// already expired) and sets locked_until exactly when the incremented value
// reaches the policy threshold. Concurrent callers must never lose updates.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	RecordFailedAttempt(ctx context.Context, id string, at time.Time, policy LockoutPolicy) (FailedAttemptResult, error)
	RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	SetTOTPSecret(ctx context.Context, id string, secret string, backupCodeHashes []string) error
	SetTOTPEnabled(ctx context.Context, id string, enabled bool) error
	ClearTOTP(ctx context.Context, id string) error
	ConsumeBackupCode(ctx context.Context, id string, codeHash string) (bool, error)
	Deactivate(ctx context.Context, id string) error
}
