package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

// PasswordResetRepository stores hashed password reset tokens.
type PasswordResetRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewPasswordResetRepository(exec pgExecutor) *PasswordResetRepository {
	return &PasswordResetRepository{exec: exec, builder: newBuilder()}
}

// WithTx returns a repository instance executing within the provided transaction.
func (r *PasswordResetRepository) WithTx(tx pgx.Tx) *PasswordResetRepository {
	if tx == nil {
		return r
	}
	return &PasswordResetRepository{exec: tx, builder: r.builder}
}

func (r *PasswordResetRepository) Create(ctx context.Context, token domain.PasswordResetToken) error {
	stmt, args, err := r.builder.Insert("account.password_resets").
		Columns("id", "user_id", "token_hash", "created_at", "expires_at").
		Values(token.ID, token.UserID, token.TokenHash, token.CreatedAt, token.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert password reset sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

// GetByHash returns the token row regardless of its usage or expiry; callers
// decide which of those make it unusable.
func (r *PasswordResetRepository) GetByHash(ctx context.Context, tokenHash string) (domain.PasswordResetToken, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "token_hash", "created_at", "expires_at", "used_at").
		From("account.password_resets").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return domain.PasswordResetToken{}, fmt.Errorf("build select password reset sql: %w", err)
	}

	var token domain.PasswordResetToken
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.UsedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PasswordResetToken{}, repository.ErrNotFound
		}
		return domain.PasswordResetToken{}, fmt.Errorf("scan password reset: %w", err)
	}
	return token, nil
}

// MarkUsed consumes the token. It returns repository.ErrNotFound when the token
// was already used, so two concurrent confirmations cannot both succeed.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("account.password_resets").
		Set("used_at", at).
		Where(squirrel.Eq{"id": id, "used_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark reset used sql: %w", err)
	}
	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark reset used: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// InvalidateForUser marks every outstanding token of the user as used.
func (r *PasswordResetRepository) InvalidateForUser(ctx context.Context, userID string, at time.Time) (int, error) {
	stmt, args, err := r.builder.Update("account.password_resets").
		Set("used_at", at).
		Where(squirrel.Eq{"user_id": userID, "used_at": nil}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build invalidate resets sql: %w", err)
	}
	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("invalidate resets: %w", err)
	}
	return int(ct.RowsAffected()), nil
}
