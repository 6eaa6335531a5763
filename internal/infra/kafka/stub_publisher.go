package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
)

// StubPublisher logs events instead of sending them. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, key string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	p.logger.Info("stub event published",
		append([]zap.Field{
			zap.String("event_type", eventType),
			zap.String("key", key),
			zap.Time("timestamp", at.UTC()),
		}, fields...)...,
	)
}

func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.logEvent(EventAccountRegistered, event.UserID, event.RegisteredAt,
		zap.String("phone", logger.MaskPhone(event.Phone)),
		zap.String("country_iso", event.CountryISO),
		zap.String("carrier", string(event.Carrier)),
	)
	return nil
}

func (p *StubPublisher) PublishLoginLocked(_ context.Context, event domain.LoginLockedEvent) error {
	p.logEvent(EventLoginLocked, logger.MaskIdentifier(event.Identifier), event.LockedAt,
		zap.Int("failure_count", event.FailureCount),
		zap.Time("locked_until", event.LockedUntil),
	)
	return nil
}

func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.logEvent(EventPasswordChanged, event.UserID, event.ChangedAt, zap.String("changed_by", event.ChangedBy))
	return nil
}

func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(EventPasswordResetRequested, event.UserID, event.RequestedAt,
		zap.String("destination", event.MaskedDestination),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}

func (p *StubPublisher) PublishPaymentInitiated(_ context.Context, event domain.PaymentInitiatedEvent) error {
	p.logEvent(EventPaymentInitiated, event.TransactionID, event.InitiatedAt,
		zap.String("amount", event.Amount.StringFixed(2)),
		zap.String("currency", event.Currency),
		zap.String("carrier", string(event.Carrier)),
	)
	return nil
}

func (p *StubPublisher) PublishPaymentSettled(_ context.Context, event domain.PaymentSettledEvent) error {
	p.logEvent(EventPaymentSettled, event.TransactionID, event.SettledAt, zap.String("status", string(event.Status)))
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
