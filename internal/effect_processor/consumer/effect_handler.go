// Package consumer receives the two inbound flows of the processor: decoded
// ledger effects off the account streams and payment commands off the Kafka
// command topic. Both end as outbound events handed to the dispatcher.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stellar-tenant-bridge/internal/config"
	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/domain/cursor"
	"github.com/stellar-tenant-bridge/internal/domain/event"
	"github.com/stellar-tenant-bridge/internal/domain/journal"
	"github.com/stellar-tenant-bridge/internal/effect_processor/dispatcher"
	"github.com/stellar-tenant-bridge/internal/effect_processor/service"
	"github.com/stellar-tenant-bridge/internal/platform/persistence"
	"github.com/stellar-tenant-bridge/internal/stellar"
)

// TxRunner runs a function inside one database transaction.
// *persistence.PostgresDB satisfies it.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

var _ TxRunner = (*persistence.PostgresDB)(nil)

// EffectHandler turns one observed ledger effect into its domain events.
// The cursor-mark insert is the sole deduplication point: whoever inserts
// the token first owns the effect, everyone else skips it.
type EffectHandler struct {
	db          TxRunner
	bridges     bridge.Repository
	cursors     cursor.Repository
	events      event.Repository
	journal     journal.Repository
	dispatcher  *dispatcher.Dispatcher
	pool        *service.WorkerPool
	retryBudget int
	logger      *slog.Logger
}

// NewEffectHandler wires the handler.
func NewEffectHandler(
	logger *slog.Logger,
	cfg *config.EventsConfig,
	db TxRunner,
	bridges bridge.Repository,
	cursors cursor.Repository,
	events event.Repository,
	journalRepo journal.Repository,
	disp *dispatcher.Dispatcher,
	pool *service.WorkerPool,
) *EffectHandler {
	return &EffectHandler{
		db:          db,
		bridges:     bridges,
		cursors:     cursors,
		events:      events,
		journal:     journalRepo,
		dispatcher:  disp,
		pool:        pool,
		retryBudget: cfg.RetryBudget,
		logger:      logger,
	}
}

// HandleEffect processes one effect. The cursor insert and the outbound
// events it triggers commit atomically; the cursor is marked processed even
// when dispatch later fails, because dispatch has its own retry budget.
func (h *EffectHandler) HandleEffect(ctx context.Context, effect stellar.LedgerEffect) error {
	var queued []uuid.UUID
	alreadyHandled := false

	err := h.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		created, err := h.cursors.WithTx(tx).InsertOnce(ctx, effect.Cursor)
		if err != nil {
			return err
		}
		if !created {
			alreadyHandled = true
			return nil
		}

		ids, err := h.queueDomainEvents(ctx, tx, effect)
		if err != nil {
			return err
		}
		queued = ids
		return nil
	})
	if err != nil {
		h.logger.Error("Failed to handle ledger effect",
			"cursor", effect.Cursor,
			"account", effect.Account,
			"error", err)
		return err
	}

	if alreadyHandled {
		h.logger.Debug("Effect already handled, skipping",
			"cursor", effect.Cursor,
			"account", effect.Account)
		return nil
	}

	// the journal records everything observed, also the ignored effects
	record := &journal.Record{
		Cursor:     effect.Cursor,
		Account:    effect.Account,
		Kind:       effect.Kind,
		AssetCode:  effect.AssetCode,
		Issuer:     effect.Issuer,
		Native:     effect.Native,
		Amount:     effect.Amount,
		ObservedAt: effect.ObservedAt,
	}
	if err := h.journal.Create(ctx, record); err != nil {
		h.logger.Error("Failed to journal ledger effect",
			"cursor", effect.Cursor,
			"error", err)
	}

	if err := h.cursors.MarkProcessed(ctx, effect.Cursor); err != nil {
		h.logger.Error("Failed to mark cursor processed",
			"cursor", effect.Cursor,
			"error", err)
		return err
	}

	for _, id := range queued {
		eventID := id
		if err := h.pool.Submit(func() {
			// detach from the stream's lifetime, the resend sweep covers crashes
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
	}
	return nil
}

// queueDomainEvents decides what an effect triggers: nothing for native or
// non-payment effects, a core notification for credits and debits on a
// bridge account, plus an offer adjustment when that account owns a vault.
func (h *EffectHandler) queueDomainEvents(ctx context.Context, tx pgx.Tx, effect stellar.LedgerEffect) ([]uuid.UUID, error) {
	if effect.Native || (effect.Kind != journal.EffectCredited && effect.Kind != journal.EffectDebited) {
		return nil, nil
	}

	b, err := h.bridges.WithTx(tx).GetByAccountAddress(ctx, effect.Account)
	if err != nil {
		if errors.Is(err, bridge.ErrBridgeNotFound{}) {
			// observed-but-ignored, the cursor still advances
			return nil, nil
		}
		return nil, err
	}

	direction := event.DirectionIncoming
	if effect.Kind == journal.EffectDebited {
		direction = event.DirectionOutgoing
	}

	notice := &event.PaymentNotice{
		TenantID:  b.TenantID,
		Direction: direction,
		Amount:    effect.Amount,
		AssetCode: effect.AssetCode,
		Issuer:    effect.Issuer,
		Account:   effect.Account,
		Cursor:    effect.Cursor,
	}
	notification, err := event.NewCoreNotification(notice, h.retryBudget)
	if err != nil {
		return nil, fmt.Errorf("failed to build core notification: %w", err)
	}

	events := h.events.WithTx(tx)
	if err := events.Create(ctx, notification); err != nil {
		return nil, err
	}
	queued := []uuid.UUID{notification.ID}

	if b.HasVault() {
		code := ""
		if b.IsVaultIssuer(effect.Issuer) {
			code = effect.AssetCode
		}
		adjustment, err := event.NewOfferAdjustment(&event.OfferAdjustment{
			TenantID:  b.TenantID,
			AssetCode: code,
			Issuer:    *b.VaultAddress,
		}, h.retryBudget)
		if err != nil {
			return nil, fmt.Errorf("failed to build offer adjustment: %w", err)
		}
		if err := events.Create(ctx, adjustment); err != nil {
			return nil, err
		}
		queued = append(queued, adjustment.ID)
	}

	h.logger.Info("Ledger effect queued domain events",
		"cursor", effect.Cursor,
		"tenant_id", b.TenantID.String(),
		"direction", string(direction),
		"amount", effect.Amount.String(),
		"asset", effect.AssetCode,
		"events", len(queued))
	return queued, nil
}
