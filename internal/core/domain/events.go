package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountRegisteredEvent represents the payload for account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	UserID       string
	Phone        string
	CountryISO   string
	City         string
	Carrier      Carrier
	RegisteredAt time.Time
	Metadata     map[string]any
}

// LoginLockedEvent represents the payload for account.login_locked messages.
type LoginLockedEvent struct {
	EventID      string
	Identifier   string
	FailureCount int
	LockedAt     time.Time
	LockedUntil  time.Time
	IPAddress    *string
}

// PasswordChangedEvent represents the payload for account.password.changed messages.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	ChangedAt time.Time
	ChangedBy string
	Metadata  map[string]any
}

// PasswordResetRequestedEvent represents the payload for account.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	UserID            string
	RequestedAt       time.Time
	MaskedDestination string
	ExpiresAt         time.Time
}

// PaymentInitiatedEvent represents the payload for payment.initiated messages.
type PaymentInitiatedEvent struct {
	EventID       string
	TransactionID string
	UserID        string
	Amount        decimal.Decimal
	Currency      string
	Carrier       Carrier
	InitiatedAt   time.Time
}

// PaymentSettledEvent represents the payload for payment.settled messages.
type PaymentSettledEvent struct {
	EventID       string
	TransactionID string
	UserID        string
	Status        PaymentStatus
	SettledAt     time.Time
}
