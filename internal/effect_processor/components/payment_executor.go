// Package components holds the executors behind the event dispatcher: one
// per outbound event kind, each turning a persisted payload into its side
// effect against the ledger or the accounting core.
package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"

	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/domain/event"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
)

// PaymentSender routes a payment to its target. *stellar.PaymentRouter
// satisfies it.
type PaymentSender interface {
	Pay(ctx context.Context, owner *keypair.Full, target bridge.AccountID, amount decimal.Decimal, code string) (string, error)
}

// PaymentExecutor executes core-initiated ledger payments.
type PaymentExecutor struct {
	bridges bridge.Repository
	router  PaymentSender
	logger  *slog.Logger
}

// NewPaymentExecutor creates the executor for LEDGER_PAYMENT events.
func NewPaymentExecutor(logger *slog.Logger, bridges bridge.Repository, router PaymentSender) *PaymentExecutor {
	return &PaymentExecutor{bridges: bridges, router: router, logger: logger}
}

// Execute pays the command's target from the tenant's primary account. A
// missing bridge or malformed target is a routing failure; retrying it would
// only burn the budget, so the dispatcher exhausts it immediately.
func (x *PaymentExecutor) Execute(ctx context.Context, e *event.OutboundEvent) error {
	command, err := e.LedgerPayment()
	if err != nil {
		return shared.NewConfigurationError("components.PaymentExecutor", err)
	}

	b, err := x.bridges.GetByTenantID(ctx, command.TenantID)
	if err != nil {
		if errors.Is(err, bridge.ErrBridgeNotFound{}) {
			return shared.NewRoutingError("components.PaymentExecutor", "no bridge for tenant "+command.TenantID.String())
		}
		return shared.NewConfigurationError("components.PaymentExecutor", err)
	}

	target, err := bridge.ParseAccountID(command.Target)
	if err != nil {
		return err
	}

	owner, err := b.KeyPair()
	if err != nil {
		return err
	}

	hash, err := x.router.Pay(ctx, owner, target, command.Amount, command.AssetCode)
	if err != nil {
		return err
	}

	x.logger.Info("Core-initiated payment executed",
		"event_id", e.ID.String(),
		"tenant_id", command.TenantID.String(),
		"target", target.String(),
		"amount", command.Amount.String(),
		"asset", command.AssetCode,
		"hash", hash)
	return nil
}
