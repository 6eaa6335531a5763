package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

var userColumns = []string{
	"id",
	"phone",
	"email",
	"name",
	"city",
	"country_iso",
	"password_hash",
	"phone_verified_at",
	"created_at",
	"last_login",
	"last_password_change",
}

// UserRepository persists accounts in account.users.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{exec: exec, builder: newBuilder()}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{exec: tx, builder: r.builder}
}

// Create inserts a new user row. A duplicate phone or email yields repository.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert("account.users").
		Columns(
			"id",
			"phone",
			"email",
			"name",
			"city",
			"country_iso",
			"password_hash",
			"created_at",
			"last_password_change",
		).
		Values(
			user.ID,
			user.Phone,
			nullableString(user.Email),
			user.Name,
			user.City,
			user.CountryISO,
			user.PasswordHash,
			user.CreatedAt,
			user.LastPasswordChange,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByPhone retrieves a user by canonical phone number.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"phone": phone})
}

// GetByEmail retrieves a user by lower-cased email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

// PhoneExists reports whether an account already uses phone.
func (r *UserRepository) PhoneExists(ctx context.Context, phone string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		Prefix("SELECT EXISTS (").
		From("account.users").
		Where(squirrel.Eq{"phone": phone}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build phone exists sql: %w", err)
	}

	var exists bool
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("query phone exists: %w", err)
	}
	return exists, nil
}

// MarkPhoneVerified stamps phone_verified_at for the user.
func (r *UserRepository) MarkPhoneVerified(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("account.users").
		Set("phone_verified_at", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark phone verified sql: %w", err)
	}
	return r.execOne(ctx, "mark phone verified", stmt, args)
}

// UpdatePassword replaces the password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	stmt, args, err := r.builder.Update("account.users").
		Set("password_hash", passwordHash).
		Set("last_password_change", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}
	return r.execOne(ctx, "update password", stmt, args)
}

// UpdateLastLogin records a successful sign-in.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("account.users").
		Set("last_login", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last login sql: %w", err)
	}
	return r.execOne(ctx, "update last login", stmt, args)
}

func (r *UserRepository) execOne(ctx context.Context, op, stmt string, args []any) error {
	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("account.users").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.User{}, fmt.Errorf("build select user sql: %w", err)
	}

	var (
		user       domain.User
		email      sql.NullString
		verifiedAt *time.Time
		lastLogin  *time.Time
	)
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(
		&user.ID,
		&user.Phone,
		&email,
		&user.Name,
		&user.City,
		&user.CountryISO,
		&user.PasswordHash,
		&verifiedAt,
		&user.CreatedAt,
		&lastLogin,
		&user.LastPasswordChange,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, repository.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}

	if email.Valid {
		user.Email = email.String
	}
	user.PhoneVerifiedAt = verifiedAt
	user.PhoneVerified = verifiedAt != nil
	user.LastLogin = lastLogin
	return user, nil
}
