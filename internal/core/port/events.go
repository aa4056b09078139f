package port

import (
	"context"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
)

// EventPublisher emits security events for downstream consumers. Publishing
// is best-effort: callers log failures but never fail the operation over them.
type EventPublisher interface {
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishTwoFactorChanged(ctx context.Context, event domain.TwoFactorChangedEvent) error
}
