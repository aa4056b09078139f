package usecase

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/port"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/repository"
)

// fakeAccountRepository keeps accounts in memory and mirrors the conditional
// update semantics of the SQL implementation.
type fakeAccountRepository struct {
	accounts map[string]*domain.Account
	byEmail  map[string]string

	failedAttemptCalls  int
	successfulLoginAt   *time.Time
	updatePasswordCalls int
}

func newFakeAccountRepository(accounts ...domain.Account) *fakeAccountRepository {
	repo := &fakeAccountRepository{
		accounts: make(map[string]*domain.Account),
		byEmail:  make(map[string]string),
	}
	for i := range accounts {
		copy := accounts[i]
		repo.accounts[copy.ID] = &copy
		repo.byEmail[copy.Email] = copy.ID
	}
	return repo
}

func (f *fakeAccountRepository) Create(ctx context.Context, account domain.Account) error {
	if _, exists := f.byEmail[account.Email]; exists {
		return repository.ErrConflict
	}
	copy := account
	f.accounts[copy.ID] = &copy
	f.byEmail[copy.Email] = copy.ID
	return nil
}

func (f *fakeAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	account, ok := f.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *account
	return &copy, nil
}

func (f *fakeAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	id, ok := f.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.GetByID(ctx, id)
}

func (f *fakeAccountRepository) RecordFailedAttempt(ctx context.Context, id string, at time.Time, policy port.LockoutPolicy) (port.FailedAttemptResult, error) {
	account, ok := f.accounts[id]
	if !ok {
		return port.FailedAttemptResult{}, repository.ErrNotFound
	}

	f.failedAttemptCalls++

	if account.LockedUntil != nil && !account.LockedUntil.After(at) {
		account.LoginAttempts = 1
		account.LockedUntil = nil
	} else {
		account.LoginAttempts++
		if account.LoginAttempts >= policy.MaxAttempts {
			until := at.Add(policy.LockDuration)
			account.LockedUntil = &until
		}
	}

	result := port.FailedAttemptResult{Attempts: account.LoginAttempts}
	if account.LockedUntil != nil {
		until := *account.LockedUntil
		result.LockedUntil = &until
	}
	return result, nil
}

func (f *fakeAccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	account, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.LoginAttempts = 0
	account.LockedUntil = nil
	lastLogin := at
	account.LastLoginAt = &lastLogin
	f.successfulLoginAt = &lastLogin
	return nil
}

func (f *fakeAccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	account, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = passwordHash
	account.UpdatedAt = changedAt
	f.updatePasswordCalls++
	return nil
}

func (f *fakeAccountRepository) SetTOTPSecret(ctx context.Context, id string, secret string, backupCodeHashes []string) error {
	account, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.TOTPSecret = secret
	account.TOTPEnabled = false
	account.BackupCodeHashes = append([]string(nil), backupCodeHashes...)
	return nil
}

func (f *fakeAccountRepository) SetTOTPEnabled(ctx context.Context, id string, enabled bool) error {
	account, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.TOTPEnabled = enabled
	return nil
}

func (f *fakeAccountRepository) ClearTOTP(ctx context.Context, id string) error {
	account, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.TOTPSecret = ""
	account.TOTPEnabled = false
	account.BackupCodeHashes = nil
	return nil
}

func (f *fakeAccountRepository) ConsumeBackupCode(ctx context.Context, id string, codeHash string) (bool, error) {
	account, ok := f.accounts[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	for i, hash := range account.BackupCodeHashes {
		if hash == codeHash {
			account.BackupCodeHashes = append(account.BackupCodeHashes[:i], account.BackupCodeHashes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAccountRepository) Deactivate(ctx context.Context, id string) error {
	account, ok := f.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.IsActive = false
	return nil
}

var _ port.AccountRepository = (*fakeAccountRepository)(nil)

// fakeSessionRepository stores sessions keyed by token hash.
type fakeSessionRepository struct {
	sessions map[string]*domain.RefreshSession
	now      func() time.Time
}

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{
		sessions: make(map[string]*domain.RefreshSession),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (f *fakeSessionRepository) Create(ctx context.Context, session domain.RefreshSession) error {
	copy := session
	f.sessions[copy.ID] = &copy
	return nil
}

func (f *fakeSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshSession, error) {
	for _, session := range f.sessions {
		if session.TokenHash == tokenHash {
			copy := *session
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSessionRepository) CompareAndRevoke(ctx context.Context, id string) (bool, error) {
	session, ok := f.sessions[id]
	if !ok || session.Revoked {
		return false, nil
	}
	session.Revoked = true
	return true, nil
}

func (f *fakeSessionRepository) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	for _, session := range f.sessions {
		if session.TokenHash == tokenHash {
			session.Revoked = true
		}
	}
	return nil
}

func (f *fakeSessionRepository) RevokeAllForAccount(ctx context.Context, accountID string) (int, error) {
	count := 0
	for _, session := range f.sessions {
		if session.AccountID == accountID && !session.Revoked {
			session.Revoked = true
			count++
		}
	}
	return count, nil
}

func (f *fakeSessionRepository) ListActiveByAccount(ctx context.Context, accountID string) ([]domain.RefreshSession, error) {
	now := f.now()
	result := make([]domain.RefreshSession, 0)
	for _, session := range f.sessions {
		if session.AccountID == accountID && session.Active(now) {
			result = append(result, *session)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (f *fakeSessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	count := 0
	for id, session := range f.sessions {
		if !session.ExpiresAt.After(before) {
			delete(f.sessions, id)
			count++
		}
	}
	return count, nil
}

func (f *fakeSessionRepository) activeCount(accountID string) int {
	count := 0
	for _, session := range f.sessions {
		if session.AccountID == accountID && !session.Revoked {
			count++
		}
	}
	return count
}

var _ port.SessionRepository = (*fakeSessionRepository)(nil)

// fakeResetTokenRepository stores reset tokens in memory.
type fakeResetTokenRepository struct {
	tokens map[string]*domain.PasswordResetToken
}

func newFakeResetTokenRepository() *fakeResetTokenRepository {
	return &fakeResetTokenRepository{tokens: make(map[string]*domain.PasswordResetToken)}
}

func (f *fakeResetTokenRepository) Create(ctx context.Context, token domain.PasswordResetToken) error {
	copy := token
	f.tokens[copy.ID] = &copy
	return nil
}

func (f *fakeResetTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	for _, token := range f.tokens {
		if token.TokenHash == tokenHash {
			copy := *token
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeResetTokenRepository) Consume(ctx context.Context, id string, usedAt time.Time) error {
	token, ok := f.tokens[id]
	if !ok || token.UsedAt != nil {
		return repository.ErrNotFound
	}
	used := usedAt
	token.UsedAt = &used
	return nil
}

var _ port.ResetTokenRepository = (*fakeResetTokenRepository)(nil)

// fakeHasher prefixes passwords instead of hashing so tests stay fast.
type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (fakeHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "hashed:"+password, nil
}

var _ port.PasswordHasher = fakeHasher{}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	loginSucceeded   []domain.LoginSucceededEvent
	loginFailed      []domain.LoginFailedEvent
	accountLocked    []domain.AccountLockedEvent
	sessionRevoked   []domain.SessionRevokedEvent
	passwordChanged  []domain.PasswordChangedEvent
	twoFactorChanged []domain.TwoFactorChangedEvent
}

func (p *recordingPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	p.loginSucceeded = append(p.loginSucceeded, event)
	return nil
}

func (p *recordingPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	p.loginFailed = append(p.loginFailed, event)
	return nil
}

func (p *recordingPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	p.accountLocked = append(p.accountLocked, event)
	return nil
}

func (p *recordingPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	p.sessionRevoked = append(p.sessionRevoked, event)
	return nil
}

func (p *recordingPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	p.passwordChanged = append(p.passwordChanged, event)
	return nil
}

func (p *recordingPublisher) PublishTwoFactorChanged(ctx context.Context, event domain.TwoFactorChangedEvent) error {
	p.twoFactorChanged = append(p.twoFactorChanged, event)
	return nil
}

var _ port.EventPublisher = (*recordingPublisher)(nil)
