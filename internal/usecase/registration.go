package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/port"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/security"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/repository"
)

var (
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPasswordPolicyViolation indicates the password does not satisfy complexity requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
	// ErrInvalidRole indicates an unknown role value.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidEmail indicates a missing or malformed email address.
	ErrInvalidEmail = errors.New("invalid email address")
)

// RegistrationService handles new account onboarding.
type RegistrationService struct {
	accounts port.AccountRepository
	hasher   port.PasswordHasher
	logger   *zap.Logger
	now      func() time.Time
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(accounts port.AccountRepository, hasher port.PasswordHasher, log *zap.Logger) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
		accounts: accounts,
		hasher:   hasher,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RegisterInput carries the fields required to create an account.
type RegisterInput struct {
	Email        string
	Password     string
	Role         string
	DepartmentID string
}

// Register creates an active account after validating the email, role, and
// password policy.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return domain.Account{}, ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Account{}, ErrInvalidEmail
	}

	role, ok := domain.ParseRole(input.Role)
	if !ok {
		return domain.Account{}, ErrInvalidRole
	}

	password := strings.TrimSpace(input.Password)
	if password == "" {
		return domain.Account{}, fmt.Errorf("%w: password is required", ErrPasswordPolicyViolation)
	}

	policy := security.DefaultPasswordPolicy(email)
	if err := policy.Validate(password); err != nil {
		return domain.Account{}, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	account := domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		DepartmentID: strings.TrimSpace(input.DepartmentID),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Account{}, ErrEmailTaken
		}
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	return account.Sanitize(), nil
}

// Deactivate soft-disables an account. The account row is kept; further
// logins and refreshes fail with an inactive-account error.
func (s *RegistrationService) Deactivate(ctx context.Context, accountID string) error {
	if strings.TrimSpace(accountID) == "" {
		return ErrAccountNotFound
	}

	if err := s.accounts.Deactivate(ctx, accountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("deactivate account: %w", err)
	}

	s.logger.Info("account deactivated", zap.String("account_id", accountID))

	return nil
}
