// Package kafka publishes session lifecycle events.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/repositories"
	"github.com/loic-ops/medical-transcription/internal/metrics"
)

const defaultTopic = "medical-transcription.events"

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher writes session events to one topic, keyed by transcription ID.
// Without brokers it only logs.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Ensure Publisher implements the EventPublisher interface
var _ repositories.EventPublisher = (*Publisher)(nil)

// New creates a new Kafka event publisher
func New(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Publisher {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	topic := cfg.Topic
	if topic == "" {
		topic = defaultTopic
	}

	if len(cfg.Brokers) == 0 {
		logger.Info("Kafka disabled, using log-only mode")
		return &Publisher{topic: topic, metrics: m, logger: logger}
	}

	// Longer dial timeout for DNS resolution inside container networks
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	logger.Info("Kafka publisher initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", topic))

	return &Publisher{
		writer:  writer,
		topic:   topic,
		enabled: true,
		metrics: m,
		logger:  logger,
	}
}

// Publish implements repositories.EventPublisher
func (p *Publisher) Publish(ctx context.Context, event domain.SessionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event", zap.String("topic", p.topic), zap.Error(err))
		return err
	}

	p.logger.Debug("Publishing event",
		zap.String("topic", p.topic),
		zap.String("type", string(event.Type)),
		zap.String("transcriptionID", event.TranscriptionID),
		zap.ByteString("payload", payload))

	if !p.enabled || p.writer == nil {
		p.metrics.RecordPublish(nil)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(event.TranscriptionID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to write to Kafka",
			zap.String("topic", p.topic),
			zap.String("transcriptionID", event.TranscriptionID),
			zap.Error(err))
		p.metrics.RecordPublish(err)
		return err
	}

	p.metrics.RecordPublish(nil)
	return nil
}

// Close closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Error closing Kafka writer", zap.Error(err))
		return err
	}
	return nil
}
