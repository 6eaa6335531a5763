package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/core/port"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/logger"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/numbering"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/telemetry"
)

var (
	// ErrUnsupportedCurrency indicates a currency outside the configured list.
	ErrUnsupportedCurrency = errors.New("currency is not supported")
	// ErrTransactionIDRequired indicates a status update without a transaction id.
	ErrTransactionIDRequired = errors.New("transaction id is required")
)

// PaymentOption customises PaymentService.
type PaymentOption func(*PaymentService)

// WithPaymentClock overrides the clock.
func WithPaymentClock(now func() time.Time) PaymentOption {
	return func(s *PaymentService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPaymentLogger sets the logger.
func WithPaymentLogger(log *zap.Logger) PaymentOption {
	return func(s *PaymentService) {
		if log != nil {
			s.log = log
		}
	}
}

// PaymentService initiates mobile-money payments and tracks their status.
type PaymentService struct {
	plan       *numbering.Plan
	gateway    port.PaymentGateway
	payments   port.PaymentRepository
	hub        *StatusHub
	events     port.EventPublisher
	metrics    *telemetry.Metrics
	currency   string
	currencies map[string]struct{}
	defaultISO string
	now        func() time.Time
	log        *zap.Logger
}

// NewPaymentService constructs a PaymentService. events and metrics may be nil.
func NewPaymentService(
	plan *numbering.Plan,
	gateway port.PaymentGateway,
	payments port.PaymentRepository,
	hub *StatusHub,
	events port.EventPublisher,
	metrics *telemetry.Metrics,
	cfg config.PaymentSettings,
	defaultISO string,
	opts ...PaymentOption,
) *PaymentService {
	if hub == nil {
		hub = NewStatusHub()
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}
	currencies := map[string]struct{}{currency: {}}
	for _, c := range cfg.SupportedCurrencies {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			currencies[c] = struct{}{}
		}
	}
	if defaultISO == "" {
		defaultISO = "CD"
	}
	s := &PaymentService{
		plan:       plan,
		gateway:    gateway,
		payments:   payments,
		hub:        hub,
		events:     events,
		metrics:    metrics,
		currency:   currency,
		currencies: currencies,
		defaultISO: defaultISO,
		now:        time.Now,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate validates the request, routes it to the phone's carrier and records
// the pending payment.
func (s *PaymentService) Initiate(ctx context.Context, req domain.PaymentRequest) (domain.Payment, error) {
	ctx, span := telemetry.StartSpan(ctx, "payment.Initiate")
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	if strings.TrimSpace(req.UserID) == "" {
		err = domain.NewAuthError(domain.AuthRequiresRecentLogin, nil)
		return domain.Payment{}, err
	}
	if !req.Amount.GreaterThan(decimal.Zero) {
		err = domain.NewValidationError("amount", domain.ErrInvalidAmount)
		return domain.Payment{}, err
	}
	amount := req.Amount.Round(2)

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currency
	}
	if _, ok := s.currencies[currency]; !ok {
		err = domain.NewValidationError("currency", ErrUnsupportedCurrency)
		return domain.Payment{}, err
	}

	iso := strings.ToUpper(strings.TrimSpace(req.CountryISO))
	if iso == "" {
		iso = s.defaultISO
	}
	details, err := s.plan.Parse(req.Phone, iso)
	if err != nil {
		err = domain.NewValidationError("phone", err)
		return domain.Payment{}, err
	}
	if details.Carrier == domain.CarrierNone {
		err = domain.NewValidationError("phone", domain.ErrCarrierRequired)
		return domain.Payment{}, err
	}

	resp, err := s.gateway.Initiate(ctx, domain.GatewayPaymentRequest{
		Amount:      amount,
		PhoneNumber: details.Number.Canonical(),
		UserID:      req.UserID,
		Currency:    currency,
		Provider:    details.Carrier,
	})
	if err != nil {
		s.metrics.ObservePayment("gateway_error")
		err = fmt.Errorf("initiate payment: %w", err)
		return domain.Payment{}, err
	}

	now := s.now().UTC()
	payment := domain.Payment{
		TransactionID: resp.TransactionID,
		UserID:        req.UserID,
		Amount:        amount,
		Currency:      currency,
		Phone:         details.Number.Canonical(),
		Carrier:       details.Carrier,
		Status:        domain.PaymentPending,
		Message:       resp.Message,
		Instructions:  resp.Instructions,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err = s.payments.Create(ctx, payment); err != nil {
		err = fmt.Errorf("store payment %s: %w", payment.TransactionID, err)
		return domain.Payment{}, err
	}

	s.metrics.ObservePayment(string(domain.PaymentPending))
	s.log.Info("payment initiated",
		zap.String("transaction_id", payment.TransactionID),
		zap.String("user_id", payment.UserID),
		zap.String("carrier", string(payment.Carrier)),
		zap.String("phone", logger.MaskPhone(payment.Phone)),
	)

	if s.events != nil {
		event := domain.PaymentInitiatedEvent{
			EventID:       uuid.NewString(),
			TransactionID: payment.TransactionID,
			UserID:        payment.UserID,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
			Carrier:       payment.Carrier,
			InitiatedAt:   now,
		}
		if pubErr := s.events.PublishPaymentInitiated(ctx, event); pubErr != nil {
			s.log.Warn("publish payment initiated failed", zap.String("transaction_id", payment.TransactionID), zap.Error(pubErr))
		}
	}
	return payment, nil
}

// Status returns the payment when it belongs to userID.
func (s *PaymentService) Status(ctx context.Context, userID, transactionID string) (domain.Payment, error) {
	payment, err := s.payments.Get(ctx, transactionID)
	if err != nil {
		return domain.Payment{}, err
	}
	if userID != "" && payment.UserID != userID {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return payment, nil
}

// Subscribe returns a subscription that yields the payment's terminal status.
// A payment that is already terminal is delivered at once.
func (s *PaymentService) Subscribe(ctx context.Context, userID, transactionID string) (*PaymentSubscription, error) {
	sub := s.hub.Subscribe(transactionID)

	payment, err := s.Status(ctx, userID, transactionID)
	if err != nil {
		s.hub.Unsubscribe(sub)
		return nil, err
	}
	if payment.Status.Terminal() {
		s.hub.deliverTo(sub, domain.PaymentStatusUpdate{
			TransactionID: payment.TransactionID,
			Status:        payment.Status,
			Message:       payment.Message,
			OccurredAt:    payment.UpdatedAt,
		})
	}
	return sub, nil
}

// Unsubscribe tears the subscription down.
func (s *PaymentService) Unsubscribe(sub *PaymentSubscription) {
	s.hub.Unsubscribe(sub)
}

// ApplyStatus records a pushed status. Updates for an already terminal payment
// are ignored, so redelivery is harmless.
func (s *PaymentService) ApplyStatus(ctx context.Context, update domain.PaymentStatusUpdate) error {
	if strings.TrimSpace(update.TransactionID) == "" {
		return domain.NewValidationError("transaction_id", ErrTransactionIDRequired)
	}
	if !update.Status.Valid() {
		return domain.NewValidationError("status", fmt.Errorf("unknown payment status %q", update.Status))
	}
	if !update.Status.Terminal() {
		return nil
	}
	if update.OccurredAt.IsZero() {
		update.OccurredAt = s.now().UTC()
	}

	moved, err := s.payments.UpdateStatus(ctx, update.TransactionID, update.Status, update.Message, update.OccurredAt)
	if err != nil {
		return fmt.Errorf("apply payment status %s: %w", update.TransactionID, err)
	}
	if !moved {
		s.log.Debug("payment status already settled", zap.String("transaction_id", update.TransactionID))
		return nil
	}

	s.metrics.ObservePayment(string(update.Status))
	delivered := s.hub.Publish(update)
	s.log.Info("payment settled",
		zap.String("transaction_id", update.TransactionID),
		zap.String("status", string(update.Status)),
		zap.Int("subscribers", delivered),
	)

	if s.events != nil {
		payment, err := s.payments.Get(ctx, update.TransactionID)
		if err != nil {
			s.log.Warn("load settled payment failed", zap.String("transaction_id", update.TransactionID), zap.Error(err))
			return nil
		}
		event := domain.PaymentSettledEvent{
			EventID:       uuid.NewString(),
			TransactionID: update.TransactionID,
			UserID:        payment.UserID,
			Status:        update.Status,
			SettledAt:     update.OccurredAt,
		}
		if pubErr := s.events.PublishPaymentSettled(ctx, event); pubErr != nil {
			s.log.Warn("publish payment settled failed", zap.String("transaction_id", update.TransactionID), zap.Error(pubErr))
		}
	}
	return nil
}
