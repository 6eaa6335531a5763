package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
)

type recordingApplier struct {
	updates []domain.PaymentStatusUpdate
}

func (r *recordingApplier) ApplyStatus(_ context.Context, update domain.PaymentStatusUpdate) error {
	r.updates = append(r.updates, update)
	return nil
}

func TestPaymentStatusConsumer_HandleMessage(t *testing.T) {
	applier := &recordingApplier{}
	consumer := NewPaymentStatusConsumer(applier, zaptest.NewLogger(t))
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	msg := &sarama.ConsumerMessage{
		Value:     []byte(`{"transaction_id":"tx-1","status":"success","message":"paid"}`),
		Timestamp: ts,
	}
	if err := consumer.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}
	if len(applier.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(applier.updates))
	}
	got := applier.updates[0]
	if got.TransactionID != "tx-1" || got.Status != domain.PaymentSuccess || !got.OccurredAt.Equal(ts) {
		t.Fatalf("unexpected update %+v", got)
	}
}

func TestPaymentStatusConsumer_RejectsBadMessages(t *testing.T) {
	applier := &recordingApplier{}
	consumer := NewPaymentStatusConsumer(applier, zaptest.NewLogger(t))

	bad := [][]byte{
		[]byte(`not json`),
		[]byte(`{"transaction_id":"","status":"SUCCESS"}`),
		[]byte(`{"transaction_id":"tx-1","status":"REFUNDED"}`),
	}
	for _, value := range bad {
		if err := consumer.HandleMessage(context.Background(), &sarama.ConsumerMessage{Value: value}); err == nil {
			t.Fatalf("expected error for %s", value)
		}
	}
	if err := consumer.HandleMessage(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil message")
	}
	if len(applier.updates) != 0 {
		t.Fatalf("bad messages must not reach the applier")
	}
}
