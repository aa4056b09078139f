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
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/logger"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/security"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/telemetry"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email or password is incorrect.
	// Deliberately covers unknown emails so their existence is not revealed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the account is temporarily locked after repeated failures.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountInactive indicates the account has been deactivated.
	ErrAccountInactive = errors.New("account is not active")
	// ErrTwoFactorRequired indicates credentials were correct but a TOTP code must be supplied.
	ErrTwoFactorRequired = errors.New("two-factor code required")
	// ErrInvalidTwoFactorCode indicates the supplied TOTP or backup code did not verify.
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	// ErrExpiredAccessToken indicates a correctly signed access token past its expiry.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrInvalidAccessToken indicates an access token whose signature check failed.
	ErrInvalidAccessToken = errors.New("invalid access token signature")
	// ErrMalformedAccessToken indicates an access token that cannot be decoded or lacks required claims.
	ErrMalformedAccessToken = errors.New("malformed access token")
)

// LoginInput carries the credentials and client metadata of a login attempt.
type LoginInput struct {
	Email         string
	Password      string
	TwoFactorCode string
	IP            string
	UserAgent     string
}

// LoginResult is returned after a fully successful authentication.
type LoginResult struct {
	Tokens  TokenPair
	Account domain.Account
}

// AuthService coordinates credential verification, lockout accounting, and
// token issuance.
type AuthService struct {
	accounts port.AccountRepository
	hasher   port.PasswordHasher
	tokens   *security.TokenIssuer
	totp     *security.TOTPProvider
	sessions *SessionService
	events   port.EventPublisher
	policy   port.LockoutPolicy
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	accounts port.AccountRepository,
	hasher port.PasswordHasher,
	tokens *security.TokenIssuer,
	totp *security.TOTPProvider,
	sessions *SessionService,
	events port.EventPublisher,
	policy port.LockoutPolicy,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 5
	}
	if policy.LockDuration <= 0 {
		policy.LockDuration = 2 * time.Hour
	}
	return &AuthService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		totp:     totp,
		sessions: sessions,
		events:   events,
		policy:   policy,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics attaches login/lockout counters.
func (s *AuthService) WithMetrics(metrics *telemetry.Metrics) {
	s.metrics = metrics
}

// Login validates credentials against the lockout policy, enforces two-factor
// authentication when enabled, and on full success issues an access/refresh
// token pair. Login attempts reset to zero only after every check passes.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return LoginResult{}, fmt.Errorf("email is required")
	}
	if input.Password == "" {
		return LoginResult{}, fmt.Errorf("password is required")
	}

	now := s.now()

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveLogin("invalid_credentials")
			s.publishLoginFailed(ctx, email, "invalid_credentials", 0, input.IP, now)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup account: %w", err)
	}

	if account.Locked(now) {
		s.metrics.ObserveLogin("account_locked")
		s.publishLoginFailed(ctx, email, "account_locked", account.LoginAttempts, input.IP, now)
		return LoginResult{}, ErrAccountLocked
	}

	if !account.IsActive {
		s.metrics.ObserveLogin("account_inactive")
		s.publishLoginFailed(ctx, email, "account_inactive", account.LoginAttempts, input.IP, now)
		return LoginResult{}, ErrAccountInactive
	}

	ok, err := s.hasher.Verify(input.Password, account.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return LoginResult{}, s.recordFailure(ctx, account, input.IP, now)
	}

	if account.TOTPEnabled {
		if strings.TrimSpace(input.TwoFactorCode) == "" {
			// Not counted as a failed attempt: the password was correct and
			// the client is told to prompt for a code.
			s.metrics.ObserveLogin("two_factor_required")
			s.publishLoginFailed(ctx, email, "two_factor_required", account.LoginAttempts, input.IP, now)
			return LoginResult{}, ErrTwoFactorRequired
		}

		verified, err := s.verifyTwoFactor(ctx, account, strings.TrimSpace(input.TwoFactorCode))
		if err != nil {
			return LoginResult{}, err
		}
		if !verified {
			s.metrics.ObserveLogin("invalid_two_factor_code")
			s.publishLoginFailed(ctx, email, "invalid_two_factor_code", account.LoginAttempts, input.IP, now)
			return LoginResult{}, ErrInvalidTwoFactorCode
		}
	}

	if err := s.accounts.RecordSuccessfulLogin(ctx, account.ID, now); err != nil {
		return LoginResult{}, fmt.Errorf("record successful login: %w", err)
	}

	accessToken, claims, err := s.tokens.Issue(*account)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, session, err := s.sessions.CreateSession(ctx, account.ID, optionalString(input.IP), optionalString(input.UserAgent))
	if err != nil {
		return LoginResult{}, err
	}

	s.metrics.ObserveLogin("success")

	if s.events != nil {
		event := domain.LoginSucceededEvent{
			AccountID: account.ID,
			Email:     account.Email,
			IP:        input.IP,
			UserAgent: input.UserAgent,
			At:        now,
		}
		if err := s.events.PublishLoginSucceeded(ctx, event); err != nil {
			s.logger.Warn("publish login succeeded event failed", zap.Error(err))
		}
	}

	return LoginResult{
		Tokens: TokenPair{
			AccessToken:      accessToken,
			RefreshToken:     refreshToken,
			AccessExpiresAt:  claims.ExpiresAt,
			RefreshExpiresAt: session.ExpiresAt,
		},
		Account: account.Sanitize(),
	}, nil
}

// recordFailure applies the atomic failed-attempt update and reports lockouts.
func (s *AuthService) recordFailure(ctx context.Context, account *domain.Account, ip string, now time.Time) error {
	result, err := s.accounts.RecordFailedAttempt(ctx, account.ID, now, s.policy)
	if err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}

	s.metrics.ObserveLogin("invalid_credentials")
	s.publishLoginFailed(ctx, account.Email, "invalid_credentials", result.Attempts, ip, now)

	if result.Locked(now) {
		s.metrics.ObserveLockout()
		s.logger.Warn("account locked after repeated failed logins",
			zap.String("account_id", account.ID),
			zap.String("email", logger.MaskEmail(account.Email)),
			zap.Int("attempts", result.Attempts),
		)
		if s.events != nil {
			event := domain.AccountLockedEvent{
				AccountID:   account.ID,
				Email:       account.Email,
				Attempts:    result.Attempts,
				LockedUntil: *result.LockedUntil,
				At:          now,
			}
			if err := s.events.PublishAccountLocked(ctx, event); err != nil {
				s.logger.Warn("publish account locked event failed", zap.Error(err))
			}
		}
	}

	return ErrInvalidCredentials
}

// verifyTwoFactor checks a TOTP code and falls back to single-use backup codes.
func (s *AuthService) verifyTwoFactor(ctx context.Context, account *domain.Account, code string) (bool, error) {
	ok, err := s.totp.Validate(code, account.TOTPSecret)
	if err != nil {
		return false, fmt.Errorf("verify totp code: %w", err)
	}
	if ok {
		return true, nil
	}

	if len(account.BackupCodeHashes) == 0 {
		return false, nil
	}

	consumed, err := s.accounts.ConsumeBackupCode(ctx, account.ID, security.HashToken(code))
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}

	return consumed, nil
}

// ParseAccessToken verifies a compact access token and returns its claims,
// mapping verification failures onto the service error taxonomy.
func (s *AuthService) ParseAccessToken(token string) (domain.AccessClaims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrTokenExpired):
			return domain.AccessClaims{}, ErrExpiredAccessToken
		case errors.Is(err, security.ErrInvalidSignature):
			return domain.AccessClaims{}, ErrInvalidAccessToken
		default:
			return domain.AccessClaims{}, ErrMalformedAccessToken
		}
	}

	return claims, nil
}

func (s *AuthService) publishLoginFailed(ctx context.Context, email, reason string, attempts int, ip string, at time.Time) {
	if s.events == nil {
		return
	}

	event := domain.LoginFailedEvent{
		Email:    email,
		Reason:   reason,
		Attempts: attempts,
		IP:       ip,
		At:       at,
	}
	if err := s.events.PublishLoginFailed(ctx, event); err != nil {
		s.logger.Warn("publish login failed event failed", zap.Error(err))
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
