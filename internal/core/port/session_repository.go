package port

import (
	"context"
	"time"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
)

// SessionRepository deals with refresh-session storage.
//
// CompareAndRevoke must atomically flip revoked from false to true and
// report whether this call won the flip. When two concurrent refreshes race
// on the same session, exactly one caller observes won=true.
type SessionRepository interface {
	Create(ctx context.Context, session domain.RefreshSession) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshSession, error)
	CompareAndRevoke(ctx context.Context, id string) (won bool, err error)
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllForAccount(ctx context.Context, accountID string) (int, error)
	ListActiveByAccount(ctx context.Context, accountID string) ([]domain.RefreshSession, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// ResetTokenRepository stores single-use password reset token hashes.
type ResetTokenRepository interface {
	Create(ctx context.Context, token domain.PasswordResetToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error)
	Consume(ctx context.Context, id string, usedAt time.Time) error
}
