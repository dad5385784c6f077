package components

import (
	"context"
	"log/slog"

	"github.com/stellar-tenant-bridge/internal/domain/event"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
)

// CoreNotifier delivers payment notices to the accounting core.
type CoreNotifier interface {
	NotifyCore(ctx context.Context, notice *event.PaymentNotice) error
}

// NotificationExecutor pushes payment notices out to the accounting core.
type NotificationExecutor struct {
	notifier CoreNotifier
	logger   *slog.Logger
}

// NewNotificationExecutor creates the executor for CORE_NOTIFICATION events.
func NewNotificationExecutor(logger *slog.Logger, notifier CoreNotifier) *NotificationExecutor {
	return &NotificationExecutor{notifier: notifier, logger: logger}
}

// Execute hands the notice to the core adapter. The adapter is idempotent
// per (tenant, event id), so a retried delivery is harmless.
func (x *NotificationExecutor) Execute(ctx context.Context, e *event.OutboundEvent) error {
	notice, err := e.CoreNotification()
	if err != nil {
		return shared.NewConfigurationError("components.NotificationExecutor", err)
	}

	if err := x.notifier.NotifyCore(ctx, notice); err != nil {
		return err
	}

	x.logger.Info("Payment notice delivered to accounting core",
		"event_id", e.ID.String(),
		"tenant_id", notice.TenantID.String(),
		"direction", string(notice.Direction),
		"amount", notice.Amount.String(),
		"asset", notice.AssetCode)
	return nil
}
