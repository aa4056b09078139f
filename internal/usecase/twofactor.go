package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/port"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/security"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/repository"
)

var (
	// ErrNoPendingSecret indicates enable was called without a prior setup.
	ErrNoPendingSecret = errors.New("no pending two-factor secret")
	// ErrTwoFactorNotEnabled indicates disable was called while 2FA is off.
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled")
	// ErrAccountNotFound indicates the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

const (
	backupCodeCount  = 8
	backupCodeDigits = 10
)

// TwoFactorSetup is returned from Setup for one-time display to the user.
type TwoFactorSetup struct {
	Secret      string
	OtpauthURI  string
	BackupCodes []string
}

// TwoFactorService manages the TOTP enrollment lifecycle.
type TwoFactorService struct {
	accounts port.AccountRepository
	totp     *security.TOTPProvider
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewTwoFactorService constructs a TwoFactorService.
func NewTwoFactorService(accounts port.AccountRepository, totp *security.TOTPProvider, events port.EventPublisher, log *zap.Logger) *TwoFactorService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TwoFactorService{
		accounts: accounts,
		totp:     totp,
		events:   events,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *TwoFactorService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Setup generates a pending secret and backup codes. Enforcement starts only
// after Enable confirms the user's authenticator produces matching codes.
func (s *TwoFactorService) Setup(ctx context.Context, accountID string) (TwoFactorSetup, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return TwoFactorSetup{}, err
	}

	secret, uri, err := s.totp.Setup(account.Email)
	if err != nil {
		return TwoFactorSetup{}, err
	}

	codes, hashes, err := security.GenerateBackupCodes(backupCodeCount, backupCodeDigits)
	if err != nil {
		return TwoFactorSetup{}, fmt.Errorf("generate backup codes: %w", err)
	}

	if err := s.accounts.SetTOTPSecret(ctx, account.ID, secret, hashes); err != nil {
		return TwoFactorSetup{}, fmt.Errorf("store totp secret: %w", err)
	}

	return TwoFactorSetup{
		Secret:      secret,
		OtpauthURI:  uri,
		BackupCodes: codes,
	}, nil
}

// Enable verifies a code against the pending secret and turns enforcement on.
func (s *TwoFactorService) Enable(ctx context.Context, accountID, code string) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.TOTPSecret == "" {
		return ErrNoPendingSecret
	}

	ok, err := s.totp.Validate(strings.TrimSpace(code), account.TOTPSecret)
	if err != nil {
		return fmt.Errorf("verify totp code: %w", err)
	}
	if !ok {
		return ErrInvalidTwoFactorCode
	}

	if err := s.accounts.SetTOTPEnabled(ctx, account.ID, true); err != nil {
		return fmt.Errorf("enable totp: %w", err)
	}

	s.publishChanged(ctx, account.ID, true)
	return nil
}

// Disable verifies a code and unconditionally clears the secret, enforcement
// flag, and remaining backup codes.
func (s *TwoFactorService) Disable(ctx context.Context, accountID, code string) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.TOTPSecret == "" {
		return ErrTwoFactorNotEnabled
	}

	ok, err := s.totp.Validate(strings.TrimSpace(code), account.TOTPSecret)
	if err != nil {
		return fmt.Errorf("verify totp code: %w", err)
	}
	if !ok {
		return ErrInvalidTwoFactorCode
	}

	if err := s.accounts.ClearTOTP(ctx, account.ID); err != nil {
		return fmt.Errorf("disable totp: %w", err)
	}

	s.publishChanged(ctx, account.ID, false)
	return nil
}

func (s *TwoFactorService) getAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("account id is required")
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	return account, nil
}

func (s *TwoFactorService) publishChanged(ctx context.Context, accountID string, enabled bool) {
	if s.events == nil {
		return
	}

	event := domain.TwoFactorChangedEvent{
		AccountID: accountID,
		Enabled:   enabled,
		At:        s.now(),
	}
	if err := s.events.PublishTwoFactorChanged(ctx, event); err != nil {
		s.logger.Warn("publish two-factor changed event failed", zap.Error(err))
	}
}
