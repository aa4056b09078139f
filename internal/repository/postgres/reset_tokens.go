package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/domain"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/core/port"
	"github.com/maaroufi-ghizlen/instruction-sheet-iam/internal/repository"
)

// ResetTokenRepository implements port.ResetTokenRepository using PostgreSQL.
type ResetTokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewResetTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewResetTokenRepository(exec pgExecutor) *ResetTokenRepository {
	repo := &ResetTokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Create inserts a password reset token row.
func (r *ResetTokenRepository) Create(ctx context.Context, token domain.PasswordResetToken) error {
	stmt, args, err := r.builder.Insert("iam.password_reset_tokens").
		Columns("id", "account_id", "token_hash", "created_at", "expires_at", "used_at").
		Values(token.ID, token.AccountID, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.UsedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert reset token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}

	return nil
}

// GetByTokenHash fetches a reset token by its hashed value.
func (r *ResetTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordResetToken, error) {
	stmt, args, err := r.builder.
		Select("id", "account_id", "token_hash", "created_at", "expires_at", "used_at").
		From("iam.password_reset_tokens").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select reset token sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var token domain.PasswordResetToken
	if err := row.Scan(
		&token.ID,
		&token.AccountID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.UsedAt,
	); err != nil {
		if mapped := mapError(err); mapped == repository.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("scan reset token: %w", err)
	}

	return &token, nil
}

// Consume marks the token used; the conditional update keeps it single-use.
func (r *ResetTokenRepository) Consume(ctx context.Context, id string, usedAt time.Time) error {
	stmt, args, err := r.builder.Update("iam.password_reset_tokens").
		Set("used_at", usedAt.UTC()).
		Where(squirrel.Eq{"id": id}).
		Where("used_at IS NULL").
		ToSql()
	if err != nil {
		return fmt.Errorf("build consume reset token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.ResetTokenRepository = (*ResetTokenRepository)(nil)
