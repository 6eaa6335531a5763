package port

import (
	"context"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishLoginLocked(ctx context.Context, event domain.LoginLockedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishPaymentInitiated(ctx context.Context, event domain.PaymentInitiatedEvent) error
	PublishPaymentSettled(ctx context.Context, event domain.PaymentSettledEvent) error
}
