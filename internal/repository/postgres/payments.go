package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/repository"
)

// PaymentRepository persists gateway payments.
type PaymentRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

func NewPaymentRepository(exec pgExecutor) *PaymentRepository {
	return &PaymentRepository{exec: exec, builder: newBuilder()}
}

func (r *PaymentRepository) Create(ctx context.Context, payment domain.Payment) error {
	stmt, args, err := r.builder.Insert("account.payments").
		Columns(
			"transaction_id",
			"user_id",
			"amount",
			"currency",
			"phone",
			"carrier",
			"status",
			"message",
			"instructions",
			"created_at",
			"updated_at",
		).
		Values(
			payment.TransactionID,
			payment.UserID,
			payment.Amount.StringFixed(2),
			payment.Currency,
			payment.Phone,
			string(payment.Carrier),
			string(payment.Status),
			payment.Message,
			payment.Instructions,
			payment.CreatedAt,
			payment.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert payment sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, transactionID string) (domain.Payment, error) {
	stmt, args, err := r.builder.
		Select(
			"transaction_id",
			"user_id",
			"amount::text",
			"currency",
			"phone",
			"carrier",
			"status",
			"message",
			"instructions",
			"created_at",
			"updated_at",
		).
		From("account.payments").
		Where(squirrel.Eq{"transaction_id": transactionID}).
		ToSql()
	if err != nil {
		return domain.Payment{}, fmt.Errorf("build select payment sql: %w", err)
	}

	var (
		payment domain.Payment
		amount  string
		carrier string
		status  string
	)
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&payment.TransactionID,
		&payment.UserID,
		&amount,
		&payment.Currency,
		&payment.Phone,
		&carrier,
		&status,
		&payment.Message,
		&payment.Instructions,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("scan payment: %w", err)
	}

	payment.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("parse payment amount %q: %w", amount, err)
	}
	payment.Carrier = domain.Carrier(carrier)
	payment.Status = domain.PaymentStatus(status)
	return payment, nil
}

// UpdateStatus only moves rows that are still pending.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, transactionID string, status domain.PaymentStatus, message string, at time.Time) (bool, error) {
	stmt, args, err := r.builder.Update("account.payments").
		Set("status", string(status)).
		Set("message", message).
		Set("updated_at", at).
		Where(squirrel.Eq{"transaction_id": transactionID, "status": string(domain.PaymentPending)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update payment status sql: %w", err)
	}
	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("update payment status: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return true, nil
	}

	// Distinguish an unknown transaction from one that already settled.
	if _, err := r.Get(ctx, transactionID); err != nil {
		return false, err
	}
	return false, nil
}

var _ port.PaymentRepository = (*PaymentRepository)(nil)
