package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/numbering"
)

type fakeGateway struct {
	requests []domain.GatewayPaymentRequest
	err      error
}

func (g *fakeGateway) Initiate(_ context.Context, req domain.GatewayPaymentRequest) (domain.GatewayPaymentResponse, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return domain.GatewayPaymentResponse{}, g.err
	}
	return domain.GatewayPaymentResponse{TransactionID: "tx-1", Message: "confirm on your phone", Instructions: "dial *1122#"}, nil
}

type fakePayments struct {
	mu   sync.Mutex
	rows map[string]domain.Payment
}

func (f *fakePayments) Create(_ context.Context, p domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = map[string]domain.Payment{}
	}
	f.rows[p.TransactionID] = p
	return nil
}

func (f *fakePayments) Get(_ context.Context, id string) (domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return p, nil
}

func (f *fakePayments) UpdateStatus(_ context.Context, id string, status domain.PaymentStatus, message string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return false, domain.ErrPaymentNotFound
	}
	if p.Status != domain.PaymentPending {
		return false, nil
	}
	p.Status, p.Message, p.UpdatedAt = status, message, at
	f.rows[id] = p
	return true, nil
}

func newTestPaymentService(t *testing.T) (*PaymentService, *fakeGateway, *fakePayments, *recordingPublisher) {
	t.Helper()
	plan, err := numbering.Default()
	if err != nil {
		t.Fatalf("load numbering plan: %v", err)
	}
	gateway := &fakeGateway{}
	payments := &fakePayments{}
	publisher := &recordingPublisher{}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewPaymentService(plan, gateway, payments, NewStatusHub(), publisher, nil,
		config.PaymentSettings{DefaultCurrency: "USD", SupportedCurrencies: []string{"CDF"}}, "CD",
		WithPaymentClock(func() time.Time { return now }), WithPaymentLogger(zaptest.NewLogger(t)))
	return svc, gateway, payments, publisher
}

func TestPaymentService_InitiateRoutesByCarrier(t *testing.T) {
	svc, gateway, payments, publisher := newTestPaymentService(t)

	payment, err := svc.Initiate(context.Background(), domain.PaymentRequest{
		UserID: "u1",
		Amount: decimal.RequireFromString("4.999"),
		Phone:  "0991234567",
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	if len(gateway.requests) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gateway.requests))
	}
	req := gateway.requests[0]
	if req.Provider != domain.CarrierAirtel || req.PhoneNumber != "243991234567" || req.Currency != "USD" || !req.Amount.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("unexpected gateway request %+v", req)
	}
	if payment.Status != domain.PaymentPending || payment.TransactionID != "tx-1" {
		t.Fatalf("unexpected payment %+v", payment)
	}
	if _, err := payments.Get(context.Background(), "tx-1"); err != nil {
		t.Fatalf("payment not stored: %v", err)
	}
	if len(publisher.initiated) != 1 {
		t.Fatalf("expected initiated event, got %d", len(publisher.initiated))
	}
}

func TestPaymentService_InitiateValidation(t *testing.T) {
	svc, gateway, _, _ := newTestPaymentService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.PaymentRequest
		want error
	}{
		{"zero amount", domain.PaymentRequest{UserID: "u1", Amount: decimal.Zero, Phone: "0812345678"}, domain.ErrInvalidAmount},
		{"currency", domain.PaymentRequest{UserID: "u1", Amount: decimal.NewFromInt(5), Currency: "EUR", Phone: "0812345678"}, ErrUnsupportedCurrency},
		{"unknown carrier", domain.PaymentRequest{UserID: "u1", Amount: decimal.NewFromInt(5), Phone: "0950000000"}, domain.ErrUnknownCarrier},
		{"bad phone", domain.PaymentRequest{UserID: "u1", Amount: decimal.NewFromInt(5), Phone: "0812"}, domain.ErrInvalidPhoneFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Initiate(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if len(gateway.requests) != 0 {
		t.Fatalf("invalid requests must not reach the gateway, got %d", len(gateway.requests))
	}
}

func TestPaymentService_GatewayFailureStoresNothing(t *testing.T) {
	svc, gateway, payments, _ := newTestPaymentService(t)
	gateway.err = errBoom

	if _, err := svc.Initiate(context.Background(), domain.PaymentRequest{UserID: "u1", Amount: decimal.NewFromInt(5), Phone: "0812345678"}); !errors.Is(err, errBoom) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if len(payments.rows) != 0 {
		t.Fatalf("no payment should be stored, got %d", len(payments.rows))
	}
}

func TestPaymentService_ApplyStatusDeliversOnce(t *testing.T) {
	svc, _, _, publisher := newTestPaymentService(t)
	ctx := context.Background()
	if _, err := svc.Initiate(ctx, domain.PaymentRequest{UserID: "u1", Amount: decimal.NewFromInt(5), Phone: "0812345678"}); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	sub, err := svc.Subscribe(ctx, "u1", "tx-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer svc.Unsubscribe(sub)

	if err := svc.ApplyStatus(ctx, domain.PaymentStatusUpdate{TransactionID: "tx-1", Status: domain.PaymentPending}); err != nil {
		t.Fatalf("pending update: %v", err)
	}
	if err := svc.ApplyStatus(ctx, domain.PaymentStatusUpdate{TransactionID: "tx-1", Status: domain.PaymentSuccess}); err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}
	if err := svc.ApplyStatus(ctx, domain.PaymentStatusUpdate{TransactionID: "tx-1", Status: domain.PaymentFailed}); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	select {
	case update := <-sub.C:
		if update.Status != domain.PaymentSuccess {
			t.Fatalf("expected SUCCESS, got %s", update.Status)
		}
	default:
		t.Fatal("expected a delivered status")
	}
	select {
	case update := <-sub.C:
		t.Fatalf("expected a single delivery, got %+v", update)
	default:
	}

	payment, err := svc.Status(ctx, "u1", "tx-1")
	if err != nil || payment.Status != domain.PaymentSuccess {
		t.Fatalf("status not persisted: %+v %v", payment, err)
	}
	if len(publisher.settled) != 1 || publisher.settled[0].UserID != "u1" {
		t.Fatalf("expected one settled event, got %+v", publisher.settled)
	}
}

func TestPaymentService_LateSubscriberGetsTerminalStatus(t *testing.T) {
	svc, _, _, _ := newTestPaymentService(t)
	ctx := context.Background()
	if _, err := svc.Initiate(ctx, domain.PaymentRequest{UserID: "u1", Amount: decimal.NewFromInt(5), Phone: "0812345678"}); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if err := svc.ApplyStatus(ctx, domain.PaymentStatusUpdate{TransactionID: "tx-1", Status: domain.PaymentFailed, Message: "insufficient funds"}); err != nil {
		t.Fatalf("ApplyStatus: %v", err)
	}

	sub, err := svc.Subscribe(ctx, "u1", "tx-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer svc.Unsubscribe(sub)

	select {
	case update := <-sub.C:
		if update.Status != domain.PaymentFailed || update.Message != "insufficient funds" {
			t.Fatalf("unexpected update %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatal("late subscriber did not receive terminal status")
	}

	if _, err := svc.Subscribe(ctx, "someone-else", "tx-1"); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("foreign user must not subscribe, got %v", err)
	}
}

func TestStatusHub_UnsubscribeClosesAndRemoves(t *testing.T) {
	hub := NewStatusHub()
	a := hub.Subscribe("tx")
	b := hub.Subscribe("tx")
	if hub.Subscribers("tx") != 2 {
		t.Fatalf("expected two subscribers")
	}

	hub.Unsubscribe(a)
	hub.Unsubscribe(a)
	if _, open := <-a.C; open {
		t.Fatal("unsubscribed channel must be closed")
	}

	if n := hub.Publish(domain.PaymentStatusUpdate{TransactionID: "tx", Status: domain.PaymentSuccess}); n != 1 {
		t.Fatalf("expected delivery to one subscriber, got %d", n)
	}
	if n := hub.Publish(domain.PaymentStatusUpdate{TransactionID: "tx", Status: domain.PaymentFailed}); n != 0 {
		t.Fatalf("full buffer must not block or double deliver, got %d", n)
	}

	hub.Unsubscribe(b)
	if hub.Subscribers("tx") != 0 {
		t.Fatalf("expected no subscribers left")
	}
}
