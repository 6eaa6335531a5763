package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
)

// LoginAuditRepository appends to account.login_attempts.
type LoginAuditRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewLoginAuditRepository(exec pgExecutor) *LoginAuditRepository {
	return &LoginAuditRepository{exec: exec, builder: newBuilder()}
}

func (r *LoginAuditRepository) Record(ctx context.Context, attempt domain.LoginAttempt) error {
	stmt, args, err := r.builder.Insert("account.login_attempts").
		Columns("id", "identifier", "user_id", "succeeded", "locked", "ip", "user_agent", "created_at").
		Values(
			attempt.ID,
			attempt.Identifier,
			attempt.UserID,
			attempt.Succeeded,
			attempt.Locked,
			attempt.IP,
			attempt.UserAgent,
			attempt.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login attempt sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}
	return nil
}

// CountFailuresSince counts failed attempts for identifier after since.
func (r *LoginAuditRepository) CountFailuresSince(ctx context.Context, identifier string, since time.Time) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From("account.login_attempts").
		Where(squirrel.Eq{"identifier": identifier, "succeeded": false}).
		Where(squirrel.Gt{"created_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count login failures sql: %w", err)
	}
	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count login failures: %w", err)
	}
	return count, nil
}

var _ port.LoginAuditRepository = (*LoginAuditRepository)(nil)
