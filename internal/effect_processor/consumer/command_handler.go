package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stellar-tenant-bridge/internal/config"
	"github.com/stellar-tenant-bridge/internal/domain/event"
	"github.com/stellar-tenant-bridge/internal/effect_processor/dispatcher"
	"github.com/stellar-tenant-bridge/internal/effect_processor/service"
	"github.com/stellar-tenant-bridge/internal/platform/messaging/producers"
)

// CommandHandler persists core-initiated payment commands as outbound events
// and hands them to the dispatcher. The Kafka offset commits only after the
// event row exists, so a command is either durable or redelivered.
type CommandHandler struct {
	events      event.Repository
	dispatcher  *dispatcher.Dispatcher
	pool        *service.WorkerPool
	dlq         producers.DeadLetterPublisher
	retryBudget int
	logger      *slog.Logger
}

// NewCommandHandler creates a handler for the command topic.
func NewCommandHandler(
	logger *slog.Logger,
	cfg *config.EventsConfig,
	events event.Repository,
	disp *dispatcher.Dispatcher,
	pool *service.WorkerPool,
	dlq producers.DeadLetterPublisher,
) *CommandHandler {
	return &CommandHandler{
		events:      events,
		dispatcher:  disp,
		pool:        pool,
		dlq:         dlq,
		retryBudget: cfg.RetryBudget,
		logger:      logger,
	}
}

// HandleMessage processes one Kafka message from the command topic.
func (h *CommandHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var command event.PaymentCommand
	if err := json.Unmarshal(value, &command); err != nil {
		return h.sendToDLQ(ctx, key, value, fmt.Sprintf("failed to unmarshal payment command: %s", err.Error()), err)
	}

	if reason := validateCommand(&command); reason != "" {
		return h.sendToDLQ(ctx, key, value, reason, fmt.Errorf("invalid payment command: %s", reason))
	}

	e, err := event.NewLedgerPayment(&command, h.retryBudget)
	if err != nil {
		return fmt.Errorf("failed to build ledger payment event: %w", err)
	}

	if err := h.events.Create(ctx, e); err != nil {
		// not committed, the broker will redeliver
		return fmt.Errorf("failed to persist ledger payment event: %w", err)
	}

	h.logger.Info("Payment command accepted",
		"event_id", e.ID.String(),
		"tenant_id", command.TenantID.String(),
		"target", command.Target,
		"amount", command.Amount.String(),
		"asset", command.AssetCode)

	eventID := e.ID
	if err := h.pool.Submit(func() {
		if err := h.dispatcher.Dispatch(context.WithoutCancel(ctx), eventID); err != nil {
			h.logger.Warn("Event dispatch attempt failed",
				"event_id", eventID.String(),
				"error", err)
		}
	}); err != nil {
		h.logger.Warn("Could not schedule event dispatch, resend sweep will pick it up",
			"event_id", eventID.String(),
			"error", err)
	}
	return nil
}

func validateCommand(command *event.PaymentCommand) string {
	switch {
	case command.TenantID == uuid.Nil:
		return "tenant_id is required"
	case command.Target == "":
		return "target is required"
	case !command.Amount.IsPositive():
		return "amount must be positive"
	case command.AssetCode == "":
		return "asset_code is required"
	}
	return ""
}

// sendToDLQ parks an unprocessable message. If even the DLQ write fails, the
// original error propagates and the message stays uncommitted.
func (h *CommandHandler) sendToDLQ(ctx context.Context, key []byte, value []byte, reason string, cause error) error {
	h.logger.Error("Unprocessable payment command",
		"message_key", string(key),
		"reason", reason)

	if dlqErr := h.dlq.PublishToDLQ(ctx, string(key), value, reason); dlqErr != nil {
		h.logger.Error("Failed to publish command to DLQ",
			"dlq_error", dlqErr,
			"original_error", cause,
			"message_key", string(key))
		return cause
	}
	// parked, commit the offset
	return nil
}
