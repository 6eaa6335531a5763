package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle of a mobile-money payment.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Terminal reports whether no further transitions are expected.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// Valid reports whether s is a known status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentSuccess, PaymentFailed:
		return true
	}
	return false
}

// Payment is a subscription payment initiated through the gateway.
type Payment struct {
	TransactionID string
	UserID        string
	Amount        decimal.Decimal
	Currency      string
	Phone         string
	Carrier       Carrier
	Status        PaymentStatus
	Message       string
	Instructions  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PaymentRequest is the input for initiating a payment.
type PaymentRequest struct {
	UserID     string
	Amount     decimal.Decimal
	Currency   string
	Phone      string
	CountryISO string
}

// GatewayPaymentRequest is the outbound payload sent to the payment-initiation endpoint.
type GatewayPaymentRequest struct {
	Amount      decimal.Decimal
	PhoneNumber string
	UserID      string
	Currency    string
	Provider    Carrier
}

// GatewayPaymentResponse is the payment-initiation endpoint's reply.
type GatewayPaymentResponse struct {
	TransactionID string
	Message       string
	Instructions  string
}

// PaymentStatusUpdate is a status transition pushed by the payment relay.
type PaymentStatusUpdate struct {
	TransactionID string        `json:"transaction_id"`
	Status        PaymentStatus `json:"status"`
	Message       string        `json:"message,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
