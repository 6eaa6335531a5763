package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/kandyfoma/goshopperai-sub000/internal/infra/config"
)

// DeliveryFailureFunc is told about every message the brokers rejected after
// sarama gave up retrying.
type DeliveryFailureFunc func(topic string, err error)

// ProducerOption customises a Producer.
type ProducerOption func(*Producer)

// WithDeliveryFailureHook reports rejected messages to fn, typically a metric.
func WithDeliveryFailureHook(fn DeliveryFailureFunc) ProducerOption {
	return func(p *Producer) { p.onFailure = fn }
}

// Producer wraps a sarama async producer. Events are fire and forget; a
// background loop logs delivery failures until the producer is closed.
type Producer struct {
	async     sarama.AsyncProducer
	prefix    string
	logger    *zap.Logger
	onFailure DeliveryFailureFunc
	drained   chan struct{}
}

// saramaConfig is shared by the producer and the payment status consumer group.
func saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_5_0_0
	cfg.Metadata.Retry.Max = 3
	cfg.Metadata.Retry.Backoff = 250 * time.Millisecond

	// Keyed by account or transaction id so one key keeps its order.
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Flush.Frequency = 100 * time.Millisecond
	cfg.Producer.Flush.Messages = 100
	cfg.Producer.Return.Errors = true

	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	return cfg
}

// NewProducer dials the configured brokers.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger, opts ...ProducerOption) (*Producer, error) {
	async, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	p := newProducer(async, cfg, logger, opts...)
	p.logger.Info("kafka producer ready",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)
	return p, nil
}

func newProducer(async sarama.AsyncProducer, cfg config.KafkaSettings, logger *zap.Logger, opts ...ProducerOption) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Producer{
		async:   async,
		prefix:  cfg.TopicPrefix,
		logger:  logger,
		drained: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.watchFailures()
	return p
}

// watchFailures runs until sarama closes its error channel.
func (p *Producer) watchFailures() {
	defer close(p.drained)
	for perr := range p.async.Errors() {
		if perr == nil {
			continue
		}
		topic := ""
		if perr.Msg != nil {
			topic = perr.Msg.Topic
		}
		p.logger.Error("kafka delivery failed", zap.String("topic", topic), zap.Error(perr.Err))
		if p.onFailure != nil {
			p.onFailure(topic, perr.Err)
		}
	}
}

func (p *Producer) input() chan<- *sarama.ProducerMessage {
	return p.async.Input()
}

// Close flushes buffered messages and waits for the last failures to be
// reported.
func (p *Producer) Close() error {
	p.async.AsyncClose()
	<-p.drained
	p.logger.Info("kafka producer closed")
	return nil
}

// TopicName returns eventType under the configured prefix.
func (p *Producer) TopicName(eventType string) string {
	return topicName(p.prefix, eventType)
}

func topicName(prefix, name string) string {
	if prefix == "" || strings.HasPrefix(name, prefix+".") {
		return name
	}
	return prefix + "." + name
}
