package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T, async *fakeAsyncProducer) *EventPublisher {
	t.Helper()

	producer := &Producer{
		producer: async,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "sheet-iam",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	return NewEventPublisher(producer, config.AppSettings{
		Name: "sheet-iam",
		Env:  "test",
	}, zaptest.NewLogger(t))
}

func TestPublishAccountLocked(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	lockedAt := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	event := domain.AccountLockedEvent{
		EventID:     "event-123",
		AccountID:   "account-456",
		Email:       "preparer@example.com",
		Attempts:    5,
		LockedUntil: lockedAt.Add(2 * time.Hour),
		At:          lockedAt,
	}

	if err := publisher.PublishAccountLocked(context.Background(), event); err != nil {
		t.Fatalf("PublishAccountLocked returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "sheet-iam.iam.account.locked" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		raw, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("encode message value: %v", err)
		}

		var envelope struct {
			EventID   string `json:"event_id"`
			EventType string `json:"event_type"`
			AccountID string `json:"account_id"`
			Version   string `json:"version"`
			Payload   struct {
				Email    string `json:"email"`
				Attempts int    `json:"attempts"`
			} `json:"payload"`
			Metadata map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}

		if envelope.EventID != "event-123" {
			t.Fatalf("unexpected event id: %s", envelope.EventID)
		}
		if envelope.EventType != "iam.account.locked" {
			t.Fatalf("unexpected event type: %s", envelope.EventType)
		}
		if envelope.AccountID != "account-456" {
			t.Fatalf("unexpected account id: %s", envelope.AccountID)
		}
		if envelope.Payload.Attempts != 5 {
			t.Fatalf("unexpected attempts: %d", envelope.Payload.Attempts)
		}
		if envelope.Payload.Email != "pre***@example.com" {
			t.Fatalf("email was not masked: %s", envelope.Payload.Email)
		}
		if envelope.Metadata["service"] != "sheet-iam" {
			t.Fatalf("unexpected metadata service: %s", envelope.Metadata["service"])
		}
	default:
		t.Fatal("no message produced")
	}
}

func TestPublishLoginFailedContextCancelled(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	// Fill the buffer so the next publish blocks on the input channel.
	asyncProducer.input <- &sarama.ProducerMessage{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.PublishLoginFailed(ctx, domain.LoginFailedEvent{
		Email:  "someone@example.com",
		Reason: "invalid_credentials",
		At:     time.Now(),
	})
	if err == nil {
		t.Fatal("expected context error when producer input is full")
	}
}
