package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/stellar-tenant-bridge/internal/config"
	"github.com/stellar-tenant-bridge/internal/domain/event"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
)

// CoreNotificationProducer publishes payment notices on the notification
// topic the accounting core consumes. Writes are synchronous: a delivery
// failure must surface to the dispatcher so the event keeps its retry state.
type CoreNotificationProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewCoreNotificationProducer creates the producer and ensures the topic exists
func NewCoreNotificationProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*CoreNotificationProducer, error) {
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("kafka notification topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for core notification producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.NotificationTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure notification topic %s exists: %w", cfg.NotificationTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.NotificationTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.MaxWait,
	}

	return &CoreNotificationProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.NotificationTopic,
	}, nil
}

// NotifyCore publishes one payment notice, keyed by tenant so notices for
// the same tenant keep their order. The core's adapter deduplicates on the
// event id carried in the payload.
func (p *CoreNotificationProducer) NotifyCore(ctx context.Context, notice *event.PaymentNotice) error {
	value, err := json.Marshal(notice)
	if err != nil {
		return shared.NewConfigurationError("producers.NotifyCore", err)
	}

	msg := kafka.Message{
		Key:   []byte(notice.TenantID.String()),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish payment notice",
			"topic", p.topic,
			"tenant_id", notice.TenantID.String(),
			"event_id", notice.EventID.String(),
			"error", err,
		)
		// broker hiccups are transient, let the dispatcher retry
		return shared.NewOperationError(shared.FailurePayment, "producers.NotifyCore", "notice delivery to broker failed", err)
	}

	p.logger.Debug("Published payment notice",
		"topic", p.topic,
		"tenant_id", notice.TenantID.String(),
		"event_id", notice.EventID.String(),
	)
	return nil
}

func (p *CoreNotificationProducer) Close() error {
	p.logger.Info("Closing core notification producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
