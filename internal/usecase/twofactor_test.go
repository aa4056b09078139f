package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap/zaptest"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/security"
)

type twoFactorFixture struct {
	service  *TwoFactorService
	accounts *fakeAccountRepository
	events   *recordingPublisher
}

func newTwoFactorFixture(t *testing.T, now time.Time, accounts ...domain.Account) *twoFactorFixture {
	t.Helper()

	clock := func() time.Time { return now }
	provider := security.NewTOTPProvider("Instruction Sheet", 1).WithClock(clock)

	accountRepo := newFakeAccountRepository(accounts...)
	events := &recordingPublisher{}

	service := NewTwoFactorService(accountRepo, provider, events, zaptest.NewLogger(t))
	service.WithClock(clock)

	return &twoFactorFixture{
		service:  service,
		accounts: accountRepo,
		events:   events,
	}
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()

	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("generate totp code: %v", err)
	}
	return code
}

func TestTwoFactorSetupStoresPendingSecret(t *testing.T) {
	fixture := newTwoFactorFixture(t, testTime, activeAccount())

	setup, err := fixture.service.Setup(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	if setup.Secret == "" || setup.OtpauthURI == "" {
		t.Fatal("expected secret and provisioning URI")
	}
	if len(setup.BackupCodes) != backupCodeCount {
		t.Fatalf("expected %d backup codes, got %d", backupCodeCount, len(setup.BackupCodes))
	}

	stored := fixture.accounts.accounts["acc-1"]
	if stored.TOTPSecret != setup.Secret {
		t.Fatal("secret not stored on account")
	}
	if stored.TOTPEnabled {
		t.Fatal("setup must not enable enforcement")
	}
	if len(stored.BackupCodeHashes) != backupCodeCount {
		t.Fatalf("expected %d backup code hashes, got %d", backupCodeCount, len(stored.BackupCodeHashes))
	}
	for i, code := range setup.BackupCodes {
		if stored.BackupCodeHashes[i] != security.HashToken(code) {
			t.Fatalf("backup code %d stored in plaintext or mismatched", i)
		}
	}
}

func TestTwoFactorEnable(t *testing.T) {
	fixture := newTwoFactorFixture(t, testTime, activeAccount())
	ctx := context.Background()

	setup, err := fixture.service.Setup(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}

	// A code from the adjacent step is accepted within the drift window.
	if err := fixture.service.Enable(ctx, "acc-1", codeAt(t, setup.Secret, testTime.Add(-30*time.Second))); err != nil {
		t.Fatalf("Enable returned error: %v", err)
	}

	if !fixture.accounts.accounts["acc-1"].TOTPEnabled {
		t.Fatal("expected enforcement enabled")
	}
	if len(fixture.events.twoFactorChanged) != 1 || !fixture.events.twoFactorChanged[0].Enabled {
		t.Fatal("expected enabled event")
	}
}

func TestTwoFactorEnableRejectsDriftedCode(t *testing.T) {
	fixture := newTwoFactorFixture(t, testTime, activeAccount())
	ctx := context.Background()

	setup, err := fixture.service.Setup(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}

	// Three steps away is outside the ±1 window.
	err = fixture.service.Enable(ctx, "acc-1", codeAt(t, setup.Secret, testTime.Add(-90*time.Second)))
	if !errors.Is(err, ErrInvalidTwoFactorCode) {
		t.Fatalf("expected ErrInvalidTwoFactorCode, got %v", err)
	}
	if fixture.accounts.accounts["acc-1"].TOTPEnabled {
		t.Fatal("enforcement must stay off after a bad code")
	}
}

func TestTwoFactorEnableWithoutSetup(t *testing.T) {
	fixture := newTwoFactorFixture(t, testTime, activeAccount())

	err := fixture.service.Enable(context.Background(), "acc-1", "123456")
	if !errors.Is(err, ErrNoPendingSecret) {
		t.Fatalf("expected ErrNoPendingSecret, got %v", err)
	}
}

func TestTwoFactorDisableClearsEverything(t *testing.T) {
	fixture := newTwoFactorFixture(t, testTime, activeAccount())
	ctx := context.Background()

	setup, err := fixture.service.Setup(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}
	if err := fixture.service.Enable(ctx, "acc-1", codeAt(t, setup.Secret, testTime)); err != nil {
		t.Fatalf("Enable returned error: %v", err)
	}

	if err := fixture.service.Disable(ctx, "acc-1", codeAt(t, setup.Secret, testTime)); err != nil {
		t.Fatalf("Disable returned error: %v", err)
	}

	stored := fixture.accounts.accounts["acc-1"]
	if stored.TOTPSecret != "" || stored.TOTPEnabled || stored.BackupCodeHashes != nil {
		t.Fatalf("expected all two-factor state cleared, got %+v", stored)
	}
}

func TestTwoFactorDisableWrongCode(t *testing.T) {
	fixture := newTwoFactorFixture(t, testTime, activeAccount())
	ctx := context.Background()

	if _, err := fixture.service.Setup(ctx, "acc-1"); err != nil {
		t.Fatalf("Setup returned error: %v", err)
	}

	err := fixture.service.Disable(ctx, "acc-1", "000000")
	if !errors.Is(err, ErrInvalidTwoFactorCode) {
		t.Fatalf("expected ErrInvalidTwoFactorCode, got %v", err)
	}
}

func TestTwoFactorUnknownAccount(t *testing.T) {
	fixture := newTwoFactorFixture(t, testTime)

	if _, err := fixture.service.Setup(context.Background(), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
