package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/port"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/logger"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/security"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/repository"
)

var (
	// ErrInvalidResetToken indicates the reset token is unknown, expired, or already used.
	ErrInvalidResetToken = errors.New("invalid reset token")
	// ErrWrongPassword indicates the supplied current password did not verify.
	ErrWrongPassword = errors.New("current password is incorrect")
)

const (
	passwordChangeMethodChange = "change"
	passwordChangeMethodReset  = "reset"
)

// PasswordService coordinates password change and reset flows. Every
// successful password mutation revokes all refresh sessions for the account.
type PasswordService struct {
	accounts    port.AccountRepository
	resetTokens port.ResetTokenRepository
	hasher      port.PasswordHasher
	sessions    *SessionService
	events      port.EventPublisher
	resetTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewPasswordService constructs a PasswordService.
func NewPasswordService(
	accounts port.AccountRepository,
	resetTokens port.ResetTokenRepository,
	hasher port.PasswordHasher,
	sessions *SessionService,
	events port.EventPublisher,
	resetTTL time.Duration,
	log *zap.Logger,
) *PasswordService {
	if log == nil {
		log = zap.NewNop()
	}
	if resetTTL <= 0 {
		resetTTL = 30 * time.Minute
	}
	return &PasswordService{
		accounts:    accounts,
		resetTokens: resetTokens,
		hasher:      hasher,
		sessions:    sessions,
		events:      events,
		resetTTL:    resetTTL,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *PasswordService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ChangePassword verifies the current password, applies the policy to the new
// one, persists the new hash, and revokes every session for the account.
func (s *PasswordService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if strings.TrimSpace(accountID) == "" {
		return fmt.Errorf("account id is required")
	}
	if currentPassword == "" || newPassword == "" {
		return fmt.Errorf("current and new passwords are required")
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWrongPassword
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	ok, err := s.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrWrongPassword
	}

	policy := security.NewPasswordPolicy(
		security.MinLengthRule(10),
		security.RequireCharacterClassesRule(3),
		security.RequireDifferentFrom(currentPassword),
		security.RequirePasswordStrengthRule(3, account.Email),
	)
	if err := policy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	return s.applyNewPassword(ctx, account, newPassword, passwordChangeMethodChange)
}

// RequestReset issues a single-use reset token for the email's account. The
// raw token is returned for out-of-band delivery; callers respond identically
// whether or not the email exists.
func (s *PasswordService) RequestReset(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("email is required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Same external outcome as success so the existence of the
			// email is not revealed.
			s.logger.Info("password reset requested for unknown email",
				zap.String("email", logger.MaskEmail(email)))
			return "", nil
		}
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if !account.IsActive {
		return "", nil
	}

	raw, err := security.GenerateSecureToken(security.RefreshTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	now := s.now()
	token := domain.PasswordResetToken{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		TokenHash: security.HashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(s.resetTTL),
	}

	if err := s.resetTokens.Create(ctx, token); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	return raw, nil
}

// ResetPassword redeems a reset token, applying the password policy and
// revoking every session for the account.
func (s *PasswordService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if strings.TrimSpace(rawToken) == "" {
		return ErrInvalidResetToken
	}
	if newPassword == "" {
		return fmt.Errorf("new password is required")
	}

	now := s.now()

	token, err := s.resetTokens.GetByTokenHash(ctx, security.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if !token.Usable(now) {
		return ErrInvalidResetToken
	}

	account, err := s.accounts.GetByID(ctx, token.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	policy := security.DefaultPasswordPolicy(account.Email)
	if err := policy.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	if err := s.resetTokens.Consume(ctx, token.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Another redemption raced us and won.
			return ErrInvalidResetToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	return s.applyNewPassword(ctx, account, newPassword, passwordChangeMethodReset)
}

func (s *PasswordService) applyNewPassword(ctx context.Context, account *domain.Account, newPassword, method string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	revoked, err := s.sessions.RevokeAll(ctx, account.ID, "password_"+method)
	if err != nil {
		return err
	}

	if s.events != nil {
		event := domain.PasswordChangedEvent{
			AccountID:       account.ID,
			Method:          method,
			SessionsRevoked: revoked,
			At:              now,
		}
		if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
			s.logger.Warn("publish password changed event failed", zap.Error(err))
		}
	}

	return nil
}
