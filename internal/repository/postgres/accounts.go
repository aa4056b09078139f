package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/port"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/repository"
)

// AccountRepository implements port.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAccountRepository(exec pgExecutor) *AccountRepository {
	repo := &AccountRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *AccountRepository) WithTx(tx pgx.Tx) *AccountRepository {
	if tx == nil {
		return r
	}
	return &AccountRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

const accountColumns = "id, email, password_hash, role, department_id, is_active, login_attempts, locked_until, totp_secret, totp_enabled, backup_code_hashes, last_login_at, created_at, updated_at"

// Create inserts a new account row.
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	stmt, args, err := r.builder.Insert("iam.accounts").
		Columns(
			"id",
			"email",
			"password_hash",
			"role",
			"department_id",
			"is_active",
			"login_attempts",
			"locked_until",
			"totp_secret",
			"totp_enabled",
			"backup_code_hashes",
			"last_login_at",
			"created_at",
			"updated_at",
		).
		Values(
			account.ID,
			account.Email,
			account.PasswordHash,
			account.Role,
			account.DepartmentID,
			account.IsActive,
			account.LoginAttempts,
			account.LockedUntil,
			nullableString(account.TOTPSecret),
			account.TOTPEnabled,
			account.BackupCodeHashes,
			account.LastLoginAt,
			account.CreatedAt,
			account.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert account sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if mapped := mapError(err); mapped == repository.ErrConflict {
			return mapped
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by identifier.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves an account by its unique email, case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *AccountRepository) getOne(ctx context.Context, pred squirrel.Eq) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(strings.Split(accountColumns, ", ")...).
		From("iam.accounts").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	account, err := scanAccount(row)
	if err != nil {
		if mapped := mapError(err); mapped == repository.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	return account, nil
}

// RecordFailedAttempt applies the lockout policy in one conditional update.
// When an earlier lock has already expired the counter restarts at 1 and the
// lock is cleared; otherwise the counter increments, and the row is locked
// the moment it reaches the threshold. The statement is atomic, so
// concurrent failed logins never lose increments.
func (r *AccountRepository) RecordFailedAttempt(ctx context.Context, id string, at time.Time, policy port.LockoutPolicy) (port.FailedAttemptResult, error) {
	at = at.UTC()
	lockDeadline := at.Add(policy.LockDuration)

	stmt := `
		UPDATE iam.accounts
		   SET login_attempts = CASE
		           WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1
		           ELSE login_attempts + 1
		       END,
		       locked_until = CASE
		           WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN NULL
		           WHEN login_attempts + 1 >= $3 THEN $4
		           ELSE locked_until
		       END,
		       updated_at = $2
		 WHERE id = $1
		 RETURNING login_attempts, locked_until
	`

	var result port.FailedAttemptResult
	if err := r.exec.QueryRow(ctx, stmt, id, at, policy.MaxAttempts, lockDeadline).Scan(&result.Attempts, &result.LockedUntil); err != nil {
		if mapped := mapError(err); mapped == repository.ErrNotFound {
			return port.FailedAttemptResult{}, mapped
		}
		return port.FailedAttemptResult{}, fmt.Errorf("record failed attempt: %w", err)
	}

	return result, nil
}

// RecordSuccessfulLogin resets the failure counter and stamps last_login_at.
func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("iam.accounts").
		Set("login_attempts", 0).
		Set("locked_until", nil).
		Set("last_login_at", at.UTC()).
		Set("updated_at", at.UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record login sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("record successful login: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("iam.accounts").
		Set("password_hash", passwordHash).
		Set("updated_at", changedAt.UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetTOTPSecret stores a pending secret and its backup code hashes; the
// account stays totp_enabled=false until activation.
func (r *AccountRepository) SetTOTPSecret(ctx context.Context, id string, secret string, backupCodeHashes []string) error {
	stmt, args, err := r.builder.Update("iam.accounts").
		Set("totp_secret", secret).
		Set("totp_enabled", false).
		Set("backup_code_hashes", backupCodeHashes).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set totp secret sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set totp secret: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetTOTPEnabled flips enforcement for an account that has a stored secret.
func (r *AccountRepository) SetTOTPEnabled(ctx context.Context, id string, enabled bool) error {
	stmt, args, err := r.builder.Update("iam.accounts").
		Set("totp_enabled", enabled).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set totp enabled sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("set totp enabled: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ClearTOTP removes the secret, backup codes, and enforcement flag.
func (r *AccountRepository) ClearTOTP(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("iam.accounts").
		Set("totp_secret", nil).
		Set("totp_enabled", false).
		Set("backup_code_hashes", nil).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear totp sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("clear totp: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ConsumeBackupCode removes a backup code hash if present. The conditional
// update makes consumption single-use even under concurrent logins.
func (r *AccountRepository) ConsumeBackupCode(ctx context.Context, id string, codeHash string) (bool, error) {
	stmt := `
		UPDATE iam.accounts
		   SET backup_code_hashes = array_remove(backup_code_hashes, $2),
		       updated_at = now()
		 WHERE id = $1
		   AND $2 = ANY(backup_code_hashes)
	`

	ct, err := r.exec.Exec(ctx, stmt, id, codeHash)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// Deactivate soft-disables the account; rows are never hard-deleted.
func (r *AccountRepository) Deactivate(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("iam.accounts").
		Set("is_active", false).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate account sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account     domain.Account
		totpSecret  *string
		lockedUntil *time.Time
		lastLoginAt *time.Time
		backupCodes []string
	)

	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.DepartmentID,
		&account.IsActive,
		&account.LoginAttempts,
		&lockedUntil,
		&totpSecret,
		&account.TOTPEnabled,
		&backupCodes,
		&lastLoginAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}

	account.LockedUntil = lockedUntil
	account.LastLoginAt = lastLoginAt
	account.BackupCodeHashes = backupCodes
	if totpSecret != nil {
		account.TOTPSecret = *totpSecret
	}

	return &account, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ port.AccountRepository = (*AccountRepository)(nil)
