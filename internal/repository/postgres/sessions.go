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

// SessionRepository implements port.SessionRepository for PostgreSQL.
type SessionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	repo := &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Create inserts a refresh session record.
func (r *SessionRepository) Create(ctx context.Context, session domain.RefreshSession) error {
	stmt, args, err := r.builder.Insert("iam.refresh_sessions").
		Columns(
			"id",
			"account_id",
			"token_hash",
			"issued_ip",
			"issued_ua",
			"created_at",
			"expires_at",
			"revoked",
		).
		Values(
			session.ID,
			session.AccountID,
			session.TokenHash,
			session.IssuedIP,
			session.IssuedUA,
			session.CreatedAt,
			session.ExpiresAt,
			session.Revoked,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByTokenHash looks up a session by the SHA-256 hash of its opaque token.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshSession, error) {
	stmt, args, err := r.builder.Select(
		"id",
		"account_id",
		"token_hash",
		"issued_ip",
		"issued_ua",
		"created_at",
		"expires_at",
		"revoked",
	).
		From("iam.refresh_sessions").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var session domain.RefreshSession
	if err := row.Scan(
		&session.ID,
		&session.AccountID,
		&session.TokenHash,
		&session.IssuedIP,
		&session.IssuedUA,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.Revoked,
	); err != nil {
		if mapped := mapError(err); mapped == repository.ErrNotFound {
			return nil, mapped
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &session, nil
}

// CompareAndRevoke flips revoked from false to true and reports whether this
// call performed the flip. Under two racing refreshes exactly one caller
// sees won=true; the loser observes the session already revoked.
func (r *SessionRepository) CompareAndRevoke(ctx context.Context, id string) (bool, error) {
	stmt, args, err := r.builder.Update("iam.refresh_sessions").
		Set("revoked", true).
		Where(squirrel.Eq{"id": id, "revoked": false}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build compare-and-revoke sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("compare-and-revoke session: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// RevokeByTokenHash marks the session for the supplied token hash revoked.
// Revoking an absent or already-revoked session is not an error.
func (r *SessionRepository) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	stmt, args, err := r.builder.Update("iam.refresh_sessions").
		Set("revoked", true).
		Where(squirrel.Eq{"token_hash": tokenHash, "revoked": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

// RevokeAllForAccount revokes every non-revoked session owned by the account
// in a single statement and returns how many rows changed.
func (r *SessionRepository) RevokeAllForAccount(ctx context.Context, accountID string) (int, error) {
	stmt, args, err := r.builder.Update("iam.refresh_sessions").
		Set("revoked", true).
		Where(squirrel.Eq{"account_id": accountID, "revoked": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build revoke all sessions sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for account: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

// ListActiveByAccount returns non-revoked, unexpired sessions for the account.
func (r *SessionRepository) ListActiveByAccount(ctx context.Context, accountID string) ([]domain.RefreshSession, error) {
	stmt, args, err := r.builder.Select(
		"id",
		"account_id",
		"token_hash",
		"issued_ip",
		"issued_ua",
		"created_at",
		"expires_at",
		"revoked",
	).
		From("iam.refresh_sessions").
		Where(squirrel.Eq{"account_id": accountID, "revoked": false}).
		Where(squirrel.Gt{"expires_at": time.Now().UTC()}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.RefreshSession, 0)
	for rows.Next() {
		var session domain.RefreshSession
		if err := rows.Scan(
			&session.ID,
			&session.AccountID,
			&session.TokenHash,
			&session.IssuedIP,
			&session.IssuedUA,
			&session.CreatedAt,
			&session.ExpiresAt,
			&session.Revoked,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// DeleteExpired garbage-collects sessions whose lifetime ended before the cutoff.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	stmt, args, err := r.builder.Delete("iam.refresh_sessions").
		Where(squirrel.Lt{"expires_at": before.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired sessions sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}

	return int(ct.RowsAffected()), nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
