package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/port"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/security"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/infra/telemetry"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/repository"
)

var (
	// ErrInvalidRefreshToken indicates the refresh token is unknown, expired, or already revoked.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// TokenPair carries a freshly minted access token and its refresh counterpart.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// SessionService issues, rotates, and revokes refresh sessions.
type SessionService struct {
	accounts   port.AccountRepository
	sessions   port.SessionRepository
	tokens     *security.TokenIssuer
	events     port.EventPublisher
	logger     *zap.Logger
	metrics    *telemetry.Metrics
	refreshTTL time.Duration
	now        func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(
	accounts port.AccountRepository,
	sessions port.SessionRepository,
	tokens *security.TokenIssuer,
	events port.EventPublisher,
	refreshTTL time.Duration,
	logger *zap.Logger,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if refreshTTL <= 0 {
		refreshTTL = 168 * time.Hour
	}
	return &SessionService{
		accounts:   accounts,
		sessions:   sessions,
		tokens:     tokens,
		events:     events,
		logger:     logger,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithMetrics attaches rotation counters.
func (s *SessionService) WithMetrics(metrics *telemetry.Metrics) {
	s.metrics = metrics
}

// CreateSession mints an opaque refresh token and persists its session record.
// Only the token hash is stored.
func (s *SessionService) CreateSession(ctx context.Context, accountID string, ip, userAgent *string) (string, domain.RefreshSession, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", domain.RefreshSession{}, fmt.Errorf("account id is required")
	}

	token, err := security.GenerateSecureToken(security.RefreshTokenBytes)
	if err != nil {
		return "", domain.RefreshSession{}, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now()
	session := domain.RefreshSession{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: security.HashToken(token),
		IssuedIP:  ip,
		IssuedUA:  userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", domain.RefreshSession{}, fmt.Errorf("create session: %w", err)
	}

	return token, session, nil
}

// Refresh rotates a refresh token: the predecessor is revoked before the
// successor pair is handed back. When two calls race on the same token,
// exactly one wins the compare-and-revoke; the loser gets ErrInvalidRefreshToken.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (TokenPair, domain.Account, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return TokenPair{}, domain.Account{}, ErrInvalidRefreshToken
	}

	now := s.now()

	session, err := s.sessions.GetByTokenHash(ctx, security.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveRefresh("rejected")
			return TokenPair{}, domain.Account{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, domain.Account{}, fmt.Errorf("lookup session: %w", err)
	}
	if !session.Active(now) {
		s.metrics.ObserveRefresh("rejected")
		return TokenPair{}, domain.Account{}, ErrInvalidRefreshToken
	}

	// Current role and department are re-read so a privilege change takes
	// effect on the next refresh.
	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, domain.Account{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}
	if !account.IsActive {
		s.metrics.ObserveRefresh("rejected")
		return TokenPair{}, domain.Account{}, ErrAccountInactive
	}

	won, err := s.sessions.CompareAndRevoke(ctx, session.ID)
	if err != nil {
		return TokenPair{}, domain.Account{}, fmt.Errorf("revoke session: %w", err)
	}
	if !won {
		s.metrics.ObserveRefresh("rejected")
		return TokenPair{}, domain.Account{}, ErrInvalidRefreshToken
	}

	accessToken, claims, err := s.tokens.Issue(*account)
	if err != nil {
		return TokenPair{}, domain.Account{}, fmt.Errorf("issue access token: %w", err)
	}

	// Successor keeps the predecessor's client metadata.
	successor, successorSession, err := s.CreateSession(ctx, account.ID, session.IssuedIP, session.IssuedUA)
	if err != nil {
		return TokenPair{}, domain.Account{}, err
	}

	pair := TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     successor,
		AccessExpiresAt:  claims.ExpiresAt,
		RefreshExpiresAt: successorSession.ExpiresAt,
	}

	s.metrics.ObserveRefresh("rotated")

	return pair, account.Sanitize(), nil
}

// RevokeOne revokes the session behind the supplied refresh token. Idempotent:
// unknown or already-revoked tokens still report success.
func (s *SessionService) RevokeOne(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}

	if err := s.sessions.RevokeByTokenHash(ctx, security.HashToken(refreshToken)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

// RevokeAll revokes every non-revoked session owned by the account in one
// operation and returns how many were revoked.
func (s *SessionService) RevokeAll(ctx context.Context, accountID, reason string) (int, error) {
	if strings.TrimSpace(accountID) == "" {
		return 0, fmt.Errorf("account id is required")
	}

	count, err := s.sessions.RevokeAllForAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}

	if s.events != nil && count > 0 {
		event := domain.SessionRevokedEvent{
			AccountID: accountID,
			Reason:    reason,
			Count:     count,
			At:        s.now(),
		}
		if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
			s.logger.Warn("publish session revoked event failed", zap.Error(err))
		}
	}

	return count, nil
}

// ListSessions returns the account's active sessions for device overview pages.
func (s *SessionService) ListSessions(ctx context.Context, accountID string) ([]domain.RefreshSession, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("account id is required")
	}

	sessions, err := s.sessions.ListActiveByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	for i := range sessions {
		sessions[i].TokenHash = ""
	}

	return sessions, nil
}

// PurgeExpired deletes sessions whose expiry has passed. Intended for a
// periodic maintenance job.
func (s *SessionService) PurgeExpired(ctx context.Context) (int, error) {
	count, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return count, nil
}
