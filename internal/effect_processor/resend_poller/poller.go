// Package resend_poller periodically re-dispatches outbound events that are
// still unprocessed with retries left, recovering from process restarts and
// missed in-memory dispatches.
package resend_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stellar-tenant-bridge/internal/config"
	"github.com/stellar-tenant-bridge/internal/domain/event"
	"github.com/stellar-tenant-bridge/internal/effect_processor/dispatcher"
	"github.com/stellar-tenant-bridge/internal/effect_processor/service"
)

// Poller sweeps dispatchable events on a fixed interval.
type Poller struct {
	events     event.Repository
	dispatcher *dispatcher.Dispatcher
	pool       *service.WorkerPool
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int
}

func NewPoller(
	cfg *config.EventsConfig,
	events event.Repository,
	disp *dispatcher.Dispatcher,
	pool *service.WorkerPool,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		events:     events,
		dispatcher: disp,
		pool:       pool,
		logger:     logger,
		interval:   cfg.ResendInterval,
		batchSize:  cfg.BatchSize,
	}
}

// Start begins sweeping until the context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting resend poller",
		"interval", p.interval.String(),
		"batch_size", p.batchSize,
	)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Resend poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			p.logger.Debug("Resend poller tick: re-dispatching stale events")
			if err := p.sweep(ctx); err != nil {
				p.logger.Error("Error during resend sweep", "error", err)
			}
		}
	}
}

// sweep re-dispatches one batch. The dispatcher reloads each event under its
// lock key, so an event a live dispatch finished in the meantime is skipped,
// not double-executed.
func (p *Poller) sweep(ctx context.Context) error {
	events, err := p.events.GetDispatchable(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get dispatchable events: %w", err)
	}

	if len(events) == 0 {
		p.logger.Debug("No dispatchable events found.")
		return nil
	}

	p.logger.Info("Fetched dispatchable events", "count", len(events))

	for _, e := range events {
		eventID := e.ID
		if err := p.pool.Submit(func() {
			if err := p.dispatcher.Dispatch(ctx, eventID); err != nil {
				p.logger.Warn("Resend dispatch attempt failed",
					"event_id", eventID.String(),
					"error", err)
			}
		}); err != nil {
			p.logger.Error("Failed to schedule resend dispatch",
				"event_id", eventID.String(),
				"error", err)
		}
	}
	return nil
}
