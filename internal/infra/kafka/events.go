package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
)

const schemaVersion = "1.0"

// Event types, also used as topic suffixes.
const (
	EventAccountRegistered      = "account.registered"
	EventLoginLocked            = "account.login_locked"
	EventPasswordChanged        = "account.password.changed"
	EventPasswordResetRequested = "account.password.reset_requested"
	EventPaymentInitiated       = "payment.initiated"
	EventPaymentSettled         = "payment.settled"
)

// EventPublisher implements port.EventPublisher on top of Producer.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Key       string            `json:"key,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// publish wraps payload in the envelope and hands it to the async producer.
// key selects the partition.
func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, key string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	bytes, err := json.Marshal(eventEnvelope{
		EventID:   eventID,
		EventType: eventType,
		Key:       key,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}
	if key != "" {
		message.Key = sarama.StringEncoder(key)
	}

	select {
	case p.producer.input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		UserID       string         `json:"user_id"`
		Phone        string         `json:"phone"`
		CountryISO   string         `json:"country_iso"`
		City         string         `json:"city,omitempty"`
		Carrier      string         `json:"carrier,omitempty"`
		RegisteredAt time.Time      `json:"registered_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		UserID:       event.UserID,
		Phone:        event.Phone,
		CountryISO:   event.CountryISO,
		City:         event.City,
		Carrier:      string(event.Carrier),
		RegisteredAt: event.RegisteredAt.UTC(),
		Metadata:     event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventAccountRegistered, event.UserID, event.RegisteredAt, payload)
}

// PublishLoginLocked masks the identifier; consumers only need to correlate.
func (p *EventPublisher) PublishLoginLocked(ctx context.Context, event domain.LoginLockedEvent) error {
	var ip *string
	if event.IPAddress != nil {
		masked := logger.MaskIP(*event.IPAddress)
		ip = &masked
	}
	payload := struct {
		Identifier   string    `json:"identifier"`
		FailureCount int       `json:"failure_count"`
		LockedAt     time.Time `json:"locked_at"`
		LockedUntil  time.Time `json:"locked_until"`
		IPAddress    *string   `json:"ip_address,omitempty"`
	}{
		Identifier:   logger.MaskIdentifier(event.Identifier),
		FailureCount: event.FailureCount,
		LockedAt:     event.LockedAt.UTC(),
		LockedUntil:  event.LockedUntil.UTC(),
		IPAddress:    ip,
	}
	return p.publish(ctx, event.EventID, EventLoginLocked, event.Identifier, event.LockedAt, payload)
}

func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID    string         `json:"user_id"`
		ChangedAt time.Time      `json:"changed_at"`
		ChangedBy string         `json:"changed_by"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		ChangedAt: event.ChangedAt.UTC(),
		ChangedBy: event.ChangedBy,
		Metadata:  event.Metadata,
	}
	return p.publish(ctx, event.EventID, EventPasswordChanged, event.UserID, event.ChangedAt, payload)
}

func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		UserID            string    `json:"user_id"`
		RequestedAt       time.Time `json:"requested_at"`
		MaskedDestination string    `json:"masked_destination,omitempty"`
		ExpiresAt         time.Time `json:"expires_at"`
	}{
		UserID:            event.UserID,
		RequestedAt:       event.RequestedAt.UTC(),
		MaskedDestination: event.MaskedDestination,
		ExpiresAt:         event.ExpiresAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventPasswordResetRequested, event.UserID, event.RequestedAt, payload)
}

func (p *EventPublisher) PublishPaymentInitiated(ctx context.Context, event domain.PaymentInitiatedEvent) error {
	payload := struct {
		TransactionID string    `json:"transaction_id"`
		UserID        string    `json:"user_id"`
		Amount        string    `json:"amount"`
		Currency      string    `json:"currency"`
		Carrier       string    `json:"carrier"`
		InitiatedAt   time.Time `json:"initiated_at"`
	}{
		TransactionID: event.TransactionID,
		UserID:        event.UserID,
		Amount:        event.Amount.StringFixed(2),
		Currency:      event.Currency,
		Carrier:       string(event.Carrier),
		InitiatedAt:   event.InitiatedAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventPaymentInitiated, event.TransactionID, event.InitiatedAt, payload)
}

func (p *EventPublisher) PublishPaymentSettled(ctx context.Context, event domain.PaymentSettledEvent) error {
	payload := struct {
		TransactionID string    `json:"transaction_id"`
		UserID        string    `json:"user_id"`
		Status        string    `json:"status"`
		SettledAt     time.Time `json:"settled_at"`
	}{
		TransactionID: event.TransactionID,
		UserID:        event.UserID,
		Status:        string(event.Status),
		SettledAt:     event.SettledAt.UTC(),
	}
	return p.publish(ctx, event.EventID, EventPaymentSettled, event.TransactionID, event.SettledAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
