package port

import (
	"context"
	"time"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

// PaymentGateway calls the hosted payment-initiation endpoint.
type PaymentGateway interface {
	Initiate(ctx context.Context, req domain.GatewayPaymentRequest) (domain.GatewayPaymentResponse, error)
}

// PaymentRepository persists payments and their status.
type PaymentRepository interface {
	Create(ctx context.Context, payment domain.Payment) error
	Get(ctx context.Context, transactionID string) (domain.Payment, error)
	// UpdateStatus moves a pending payment to status; it reports false when the
	// payment was already terminal.
	UpdateStatus(ctx context.Context, transactionID string, status domain.PaymentStatus, message string, at time.Time) (bool, error)
}
