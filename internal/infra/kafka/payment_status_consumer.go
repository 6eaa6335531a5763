package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/core/domain"
	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
)

// StatusApplier receives decoded payment status updates.
type StatusApplier interface {
	ApplyStatus(ctx context.Context, update domain.PaymentStatusUpdate) error
}

// PaymentStatusConsumer feeds the payment relay topic into a StatusApplier.
type PaymentStatusConsumer struct {
	applier StatusApplier
	logger  *zap.Logger
}

func NewPaymentStatusConsumer(applier StatusApplier, logger *zap.Logger) *PaymentStatusConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentStatusConsumer{applier: applier, logger: logger}
}

// HandleMessage decodes and applies one relay message.
func (c *PaymentStatusConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var update domain.PaymentStatusUpdate
	if err := json.Unmarshal(msg.Value, &update); err != nil {
		return fmt.Errorf("decode payment status: %w", err)
	}
	update.Status = domain.PaymentStatus(strings.ToUpper(string(update.Status)))
	if strings.TrimSpace(update.TransactionID) == "" || !update.Status.Valid() {
		return fmt.Errorf("invalid payment status message %q/%q", update.TransactionID, update.Status)
	}
	if update.OccurredAt.IsZero() {
		update.OccurredAt = msg.Timestamp
	}

	return c.applier.ApplyStatus(ctx, update)
}

// Setup is part of sarama.ConsumerGroupHandler.
func (c *PaymentStatusConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup is part of sarama.ConsumerGroupHandler.
func (c *PaymentStatusConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks every message once handled. A bad message is logged and
// skipped so it cannot stall the partition.
func (c *PaymentStatusConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.HandleMessage(session.Context(), msg); err != nil {
				c.logger.Warn("payment status message skipped",
					zap.String("topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// ConsumerGroup runs a PaymentStatusConsumer until its context ends.
type ConsumerGroup struct {
	group   sarama.ConsumerGroup
	topic   string
	handler sarama.ConsumerGroupHandler
	logger  *zap.Logger
}

func NewConsumerGroup(cfg config.KafkaSettings, handler sarama.ConsumerGroupHandler, logger *zap.Logger) (*ConsumerGroup, error) {
	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsumerGroup{
		group:   group,
		topic:   topicName(cfg.TopicPrefix, cfg.PaymentStatusTopic),
		handler: handler,
		logger:  logger,
	}, nil
}

// Run blocks, rejoining the group after every rebalance.
func (g *ConsumerGroup) Run(ctx context.Context) error {
	g.logger.Info("kafka consumer started", zap.String("topic", g.topic))
	for {
		if err := g.group.Consume(ctx, []string{g.topic}, g.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			g.logger.Error("kafka consume failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (g *ConsumerGroup) Close() error {
	if err := g.group.Close(); err != nil {
		return fmt.Errorf("close kafka consumer group: %w", err)
	}
	return nil
}
