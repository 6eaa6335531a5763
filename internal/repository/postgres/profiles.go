package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

// ProfileRepository keeps one JSONB document per user. Saves merge into the
// existing document.
type ProfileRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

func NewProfileRepository(exec pgExecutor) *ProfileRepository {
	return &ProfileRepository{exec: exec, builder: newBuilder(), now: time.Now}
}

// WithClock overrides the timestamp source, used in tests.
func (r *ProfileRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

func (r *ProfileRepository) SaveProfile(ctx context.Context, userID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode profile fields: %w", err)
	}

	stmt, args, err := r.builder.Insert("account.profiles").
		Columns("user_id", "fields", "updated_at").
		Values(userID, payload, r.now().UTC()).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET fields = account.profiles.fields || EXCLUDED.fields, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert profile sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	stmt, args, err := r.builder.
		Select("user_id", "fields", "updated_at").
		From("account.profiles").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return domain.Profile{}, fmt.Errorf("build select profile sql: %w", err)
	}

	var (
		profile domain.Profile
		raw     []byte
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&profile.UserID, &raw, &profile.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, repository.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	profile.Fields = map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &profile.Fields); err != nil {
			return domain.Profile{}, fmt.Errorf("decode profile fields: %w", err)
		}
	}
	return profile, nil
}

// HealthCheck confirms the profile table is reachable.
func (r *ProfileRepository) HealthCheck(ctx context.Context) error {
	stmt, args, err := r.builder.Select("1").From("account.profiles").Limit(1).ToSql()
	if err != nil {
		return fmt.Errorf("build profile probe sql: %w", err)
	}
	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("probe profiles: %w", err)
	}
	return nil
}

var _ port.ProfileStore = (*ProfileRepository)(nil)
