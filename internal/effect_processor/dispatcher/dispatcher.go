// Package dispatcher drives the retry state machine of outbound events:
// pending(retries=N) -> processing -> {done | pending(retries=N-1)}, ending
// exhausted when the budget runs out while still unprocessed.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stellar-tenant-bridge/internal/domain/event"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
	"github.com/stellar-tenant-bridge/internal/effect_processor/keylock"
)

// Executor performs the side effect of one event kind.
type Executor interface {
	Execute(ctx context.Context, e *event.OutboundEvent) error
}

// Dispatcher runs one attempt of an outbound event under its lock key. The
// retry decrement is persisted before the side effect, so a crash mid-attempt
// never replays more than the budget allows.
type Dispatcher struct {
	events    event.Repository
	locks     *keylock.Synchronizer
	executors map[event.Kind]Executor
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher with no executors registered.
func NewDispatcher(logger *slog.Logger, events event.Repository, locks *keylock.Synchronizer) *Dispatcher {
	return &Dispatcher{
		events:    events,
		locks:     locks,
		executors: make(map[event.Kind]Executor),
		logger:    logger,
	}
}

// Register binds an executor to an event kind.
func (d *Dispatcher) Register(kind event.Kind, executor Executor) {
	d.executors[kind] = executor
}

// Dispatch runs one attempt of the event. Concurrent dispatches of the same
// lock key are serialized; the event is reloaded inside the critical section
// so a finished or exhausted event is never attempted again. Returns the
// execution error of the attempt, nil when the event no longer needs work.
func (d *Dispatcher) Dispatch(ctx context.Context, id uuid.UUID) error {
	e, err := d.events.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load outbound event: %w", err)
	}

	return d.locks.WithLock(e.LockKey, func() error {
		return d.attempt(ctx, id)
	})
}

func (d *Dispatcher) attempt(ctx context.Context, id uuid.UUID) error {
	// reload under the lock: another dispatch may have finished it
	e, err := d.events.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load outbound event: %w", err)
	}
	if !e.Dispatchable() {
		d.logger.Debug("Outbound event no longer dispatchable, skipping",
			"event_id", e.ID.String(),
			"kind", string(e.Kind),
			"processed", e.Processed,
			"retries_left", e.RetriesLeft)
		return nil
	}

	remaining, err := d.events.DecrementRetries(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("failed to consume retry attempt: %w", err)
	}

	executor, ok := d.executors[e.Kind]
	if !ok {
		d.logger.Error("No executor registered for event kind",
			"event_id", e.ID.String(),
			"kind", string(e.Kind))
		if err := d.events.RecordFailure(ctx, e.ID, "no executor for kind "+string(e.Kind)); err != nil {
			d.logger.Error("Failed to record dispatch failure", "event_id", e.ID.String(), "error", err)
		}
		if err := d.events.ExhaustRetries(ctx, e.ID); err != nil {
			d.logger.Error("Failed to exhaust retries", "event_id", e.ID.String(), "error", err)
		}
		return fmt.Errorf("no executor for event kind %s", e.Kind)
	}

	execErr := executor.Execute(ctx, e)
	if execErr == nil {
		if err := d.events.MarkProcessed(ctx, e.ID); err != nil {
			return fmt.Errorf("side effect succeeded but marking failed: %w", err)
		}
		d.logger.Info("Outbound event processed",
			"event_id", e.ID.String(),
			"kind", string(e.Kind))
		return nil
	}

	if err := d.events.RecordFailure(ctx, e.ID, execErr.Error()); err != nil {
		d.logger.Error("Failed to record dispatch failure",
			"event_id", e.ID.String(),
			"error", err)
	}

	kind := shared.KindOf(execErr)
	if !kind.Retryable() {
		// routing and configuration failures cannot be fixed by retrying
		if err := d.events.ExhaustRetries(ctx, e.ID); err != nil {
			d.logger.Error("Failed to exhaust retries",
				"event_id", e.ID.String(),
				"error", err)
		}
		d.logger.Warn("Outbound event failed terminally",
			"event_id", e.ID.String(),
			"kind", string(e.Kind),
			"failure", string(kind),
			"error", execErr)
		return execErr
	}

	if remaining == 0 {
		d.logger.Warn("Outbound event exhausted its retry budget",
			"event_id", e.ID.String(),
			"kind", string(e.Kind),
			"error", execErr)
	} else {
		d.logger.Warn("Outbound event attempt failed, will retry",
			"event_id", e.ID.String(),
			"kind", string(e.Kind),
			"retries_left", remaining,
			"error", execErr)
	}
	return execErr
}
