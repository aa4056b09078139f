package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/security"
)

type passwordFixture struct {
	service  *PasswordService
	sessions *SessionService
	accounts *fakeAccountRepository
	store    *fakeSessionRepository
	resets   *fakeResetTokenRepository
	events   *recordingPublisher
}

func newPasswordFixture(t *testing.T, now time.Time, accounts ...domain.Account) *passwordFixture {
	t.Helper()

	clock := func() time.Time { return now }

	issuer, err := security.NewTokenIssuer("unit-test-signing-key", "sheet-iam", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	issuer.WithClock(clock)

	accountRepo := newFakeAccountRepository(accounts...)
	sessionRepo := newFakeSessionRepository()
	sessionRepo.now = clock
	resetRepo := newFakeResetTokenRepository()
	events := &recordingPublisher{}

	sessions := NewSessionService(accountRepo, sessionRepo, issuer, events, 168*time.Hour, zaptest.NewLogger(t))
	sessions.WithClock(clock)

	service := NewPasswordService(accountRepo, resetRepo, fakeHasher{}, sessions, events, 30*time.Minute, zaptest.NewLogger(t))
	service.WithClock(clock)

	return &passwordFixture{
		service:  service,
		sessions: sessions,
		accounts: accountRepo,
		store:    sessionRepo,
		resets:   resetRepo,
		events:   events,
	}
}

func TestChangePasswordRevokesAllSessions(t *testing.T) {
	fixture := newPasswordFixture(t, testTime, activeAccount())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := fixture.sessions.CreateSession(ctx, "acc-1", nil, nil); err != nil {
			t.Fatalf("CreateSession returned error: %v", err)
		}
	}

	err := fixture.service.ChangePassword(ctx, "acc-1", "Str0ng!Pass1", "Granite-Osprey-44!")
	if err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}

	stored := fixture.accounts.accounts["acc-1"]
	if stored.PasswordHash != "hashed:Granite-Osprey-44!" {
		t.Fatalf("password hash not updated: %s", stored.PasswordHash)
	}
	if fixture.store.activeCount("acc-1") != 0 {
		t.Fatal("expected all sessions revoked after password change")
	}

	if len(fixture.events.passwordChanged) != 1 {
		t.Fatalf("expected 1 password changed event, got %d", len(fixture.events.passwordChanged))
	}
	event := fixture.events.passwordChanged[0]
	if event.Method != "change" || event.SessionsRevoked != 2 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	fixture := newPasswordFixture(t, testTime, activeAccount())

	err := fixture.service.ChangePassword(context.Background(), "acc-1", "not-the-password", "Granite-Osprey-44!")
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}

	if fixture.accounts.updatePasswordCalls != 0 {
		t.Fatal("password must not change on wrong current password")
	}
}

func TestChangePasswordRejectsReuse(t *testing.T) {
	fixture := newPasswordFixture(t, testTime, activeAccount())

	err := fixture.service.ChangePassword(context.Background(), "acc-1", "Str0ng!Pass1", "Str0ng!Pass1")
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}
}

func TestRequestResetUnknownEmailQuietlySucceeds(t *testing.T) {
	fixture := newPasswordFixture(t, testTime, activeAccount())

	token, err := fixture.service.RequestReset(context.Background(), "nobody@x.com")
	if err != nil {
		t.Fatalf("RequestReset returned error: %v", err)
	}
	if token != "" {
		t.Fatal("no token must be issued for unknown email")
	}
}

func TestResetPasswordFlow(t *testing.T) {
	fixture := newPasswordFixture(t, testTime, activeAccount())
	ctx := context.Background()

	if _, _, err := fixture.sessions.CreateSession(ctx, "acc-1", nil, nil); err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	token, err := fixture.service.RequestReset(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("RequestReset returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected reset token for known email")
	}

	if err := fixture.service.ResetPassword(ctx, token, "Granite-Osprey-44!"); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}

	stored := fixture.accounts.accounts["acc-1"]
	if stored.PasswordHash != "hashed:Granite-Osprey-44!" {
		t.Fatalf("password hash not updated: %s", stored.PasswordHash)
	}
	if fixture.store.activeCount("acc-1") != 0 {
		t.Fatal("expected all sessions revoked after reset")
	}

	// The token is single use.
	if err := fixture.service.ResetPassword(ctx, token, "Viaduct-Quartz-91!"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken on reuse, got %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	fixture := newPasswordFixture(t, testTime, activeAccount())
	ctx := context.Background()

	token, err := fixture.service.RequestReset(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("RequestReset returned error: %v", err)
	}

	fixture.service.WithClock(func() time.Time { return testTime.Add(31 * time.Minute) })

	if err := fixture.service.ResetPassword(ctx, token, "Granite-Osprey-44!"); !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken for expired token, got %v", err)
	}
}

func TestResetPasswordUnknownToken(t *testing.T) {
	fixture := newPasswordFixture(t, testTime, activeAccount())

	err := fixture.service.ResetPassword(context.Background(), "never-issued", "Granite-Osprey-44!")
	if !errors.Is(err, ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken, got %v", err)
	}
}
