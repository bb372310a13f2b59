package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/research-report-service/internal/domain"
)

// emitTimeout bounds a single Kafka write. The sink must never hold up the
// research pipeline on a slow broker.
const emitTimeout = 5 * time.Second

// KafkaConfig holds configuration for the Kafka event sink.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic progress events are published to.
	Topic string
	// BatchSize is the maximum number of messages per batch.
	BatchSize int
	// BatchTimeout is how long to wait before flushing a partial batch.
	BatchTimeout time.Duration
}

// KafkaSink publishes progress events to a Kafka topic, keyed by session ID
// so one session's events stay ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafkaSink creates a Kafka event sink.
func NewKafkaSink(cfg KafkaConfig, logger zerolog.Logger) *KafkaSink {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    batchSize,
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}

	return &KafkaSink{
		writer: writer,
		logger: logger.With().Str("component", "kafka_sink").Logger(),
	}
}

// Emit implements Sink. Serialization or broker errors are logged and
// swallowed.
func (s *KafkaSink) Emit(event domain.ProgressEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).
			Str("event_type", event.Type).
			Msg("failed to marshal progress event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionID.String()),
		Value: value,
	})
	if err != nil {
		s.logger.Error().Err(err).
			Str("session_id", event.SessionID.String()).
			Str("event_type", event.Type).
			Msg("failed to publish progress event")
	}
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
