package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/port"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	base := []zap.Field{
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
	}

	p.logger.Info("stub event published", append(base, fields...)...)
}

// PublishLoginSucceeded logs iam.login.succeeded events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	p.logEvent("iam.login.succeeded", event.AccountID, event.At,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("ip", logger.MaskIP(event.IP)),
	)
	return nil
}

// PublishLoginFailed logs iam.login.failed events.
func (p *StubPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	p.logEvent("iam.login.failed", "", event.At,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.String("reason", event.Reason),
		zap.Int("attempts", event.Attempts),
		zap.String("ip", logger.MaskIP(event.IP)),
	)
	return nil
}

// PublishAccountLocked logs iam.account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.logEvent("iam.account.locked", event.AccountID, event.At,
		zap.String("email", logger.MaskEmail(event.Email)),
		zap.Int("attempts", event.Attempts),
		zap.Time("locked_until", event.LockedUntil),
	)
	return nil
}

// PublishSessionRevoked logs iam.session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.logEvent("iam.session.revoked", event.AccountID, event.At,
		zap.String("session_id", event.SessionID),
		zap.String("reason", event.Reason),
		zap.Int("count", event.Count),
	)
	return nil
}

// PublishPasswordChanged logs iam.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent("iam.password.changed", event.AccountID, event.At,
		zap.String("method", event.Method),
		zap.Int("sessions_revoked", event.SessionsRevoked),
	)
	return nil
}

// PublishTwoFactorChanged logs iam.twofactor.changed events.
func (p *StubPublisher) PublishTwoFactorChanged(_ context.Context, event domain.TwoFactorChangedEvent) error {
	p.logEvent("iam.twofactor.changed", event.AccountID, event.At,
		zap.Bool("enabled", event.Enabled),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
