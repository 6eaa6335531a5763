package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		mock.Close()
	})
	return mock
}

func TestUserRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	user := domain.User{
		ID:                 "user-1",
		Phone:              "243812345678",
		Name:               "Jean",
		City:               "Kinshasa",
		CountryISO:         "CD",
		PasswordHash:       "$argon2id$hash",
		CreatedAt:          now,
		LastPasswordChange: now,
	}

	mock.ExpectExec(`INSERT INTO account\.users`).
		WithArgs(user.ID, user.Phone, nil, user.Name, user.City, user.CountryISO, user.PasswordHash, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
}

func TestUserRepository_CreateDuplicatePhone(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(`INSERT INTO account\.users`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_phone_key"})

	err := repo.Create(context.Background(), domain.User{ID: "user-1", Phone: "243812345678"})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUserRepository_GetByPhone(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(userColumns).AddRow(
		"user-1", "243812345678", nil, "Jean", "Kinshasa", "CD", "hash", &now, now, nil, now,
	)
	mock.ExpectQuery(`SELECT .*FROM account\.users WHERE phone = \$1`).
		WithArgs("243812345678").
		WillReturnRows(rows)

	user, err := repo.GetByPhone(context.Background(), "243812345678")
	if err != nil {
		t.Fatalf("GetByPhone returned error: %v", err)
	}
	if user.ID != "user-1" || user.Email != "" || !user.PhoneVerified {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.LastLogin != nil {
		t.Fatalf("expected nil last login")
	}
}

func TestUserRepository_GetByEmailNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM account\.users WHERE email = \$1`).
		WithArgs("a@b.cd").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByEmail(context.Background(), "a@b.cd"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_PhoneExists(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT EXISTS \( SELECT 1 FROM account\.users WHERE phone = \$1 \)`).
		WithArgs("243812345678").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.PhoneExists(context.Background(), "243812345678")
	if err != nil || !exists {
		t.Fatalf("PhoneExists = %v, %v", exists, err)
	}
}

func TestUserRepository_MarkPhoneVerifiedMissingUser(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE account\.users SET phone_verified_at = \$1 WHERE id = \$2`).
		WithArgs(at, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.MarkPhoneVerified(context.Background(), "missing", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPasswordResetRepository_MarkUsedOnce(t *testing.T) {
	mock := newMock(t)
	repo := NewPasswordResetRepository(mock)
	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE account\.password_resets SET used_at = \$1 WHERE id = \$2 AND used_at IS NULL`).
		WithArgs(at, "reset-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE account\.password_resets`).
		WithArgs(at, "reset-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.MarkUsed(context.Background(), "reset-1", at); err != nil {
		t.Fatalf("first MarkUsed: %v", err)
	}
	if err := repo.MarkUsed(context.Background(), "reset-1", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second MarkUsed should fail, got %v", err)
	}
}
