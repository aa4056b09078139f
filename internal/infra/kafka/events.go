package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/port"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/config"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	AccountID string           `json:"account_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginSucceeded publishes iam.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		Email     string    `json:"email"`
		IP        string    `json:"ip,omitempty"`
		UserAgent string    `json:"user_agent,omitempty"`
		At        time.Time `json:"at"`
	}{
		AccountID: event.AccountID,
		Email:     logger.MaskEmail(event.Email),
		IP:        logger.MaskIP(event.IP),
		UserAgent: event.UserAgent,
		At:        event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.login.succeeded", event.AccountID, event.At, payload)
}

// PublishLoginFailed publishes iam.login.failed events. The email is masked
// because failed attempts may reference addresses with no account.
func (p *EventPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	payload := struct {
		Email    string    `json:"email"`
		Reason   string    `json:"reason"`
		Attempts int       `json:"attempts,omitempty"`
		IP       string    `json:"ip,omitempty"`
		At       time.Time `json:"at"`
	}{
		Email:    logger.MaskEmail(event.Email),
		Reason:   event.Reason,
		Attempts: event.Attempts,
		IP:       logger.MaskIP(event.IP),
		At:       event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.login.failed", "", event.At, payload)
}

// PublishAccountLocked publishes iam.account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		AccountID   string    `json:"account_id"`
		Email       string    `json:"email"`
		Attempts    int       `json:"attempts"`
		LockedUntil time.Time `json:"locked_until"`
		At          time.Time `json:"at"`
	}{
		AccountID:   event.AccountID,
		Email:       logger.MaskEmail(event.Email),
		Attempts:    event.Attempts,
		LockedUntil: event.LockedUntil.UTC(),
		At:          event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.account.locked", event.AccountID, event.At, payload)
}

// PublishSessionRevoked publishes iam.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		SessionID string    `json:"session_id,omitempty"`
		Reason    string    `json:"reason"`
		Count     int       `json:"count"`
		At        time.Time `json:"at"`
	}{
		AccountID: event.AccountID,
		SessionID: event.SessionID,
		Reason:    event.Reason,
		Count:     event.Count,
		At:        event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.session.revoked", event.AccountID, event.At, payload)
}

// PublishPasswordChanged publishes iam.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID       string    `json:"account_id"`
		Method          string    `json:"method"`
		SessionsRevoked int       `json:"sessions_revoked"`
		At              time.Time `json:"at"`
	}{
		AccountID:       event.AccountID,
		Method:          event.Method,
		SessionsRevoked: event.SessionsRevoked,
		At:              event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.password.changed", event.AccountID, event.At, payload)
}

// PublishTwoFactorChanged publishes iam.twofactor.changed events.
func (p *EventPublisher) PublishTwoFactorChanged(ctx context.Context, event domain.TwoFactorChangedEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		Enabled   bool      `json:"enabled"`
		At        time.Time `json:"at"`
	}{
		AccountID: event.AccountID,
		Enabled:   event.Enabled,
		At:        event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "iam.twofactor.changed", event.AccountID, event.At, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
