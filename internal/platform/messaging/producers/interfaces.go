package producers

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/stellar-tenant-bridge/internal/domain/event"
)

// NotificationPublisher delivers payment notices to the accounting core
type NotificationPublisher interface {
	NotifyCore(ctx context.Context, notice *event.PaymentNotice) error
	Close() error
}

// DeadLetterPublisher handles publishing messages to a Dead Letter Queue
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
