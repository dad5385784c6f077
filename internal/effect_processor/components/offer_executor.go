package components

import (
	"context"
	"errors"
	"log/slog"

	"github.com/stellar/go/keypair"

	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/domain/event"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
)

// OfferAdjuster recomputes resale offers. *stellar.VaultManager satisfies it.
type OfferAdjuster interface {
	AdjustOffers(ctx context.Context, owner *keypair.Full, vaultAddress, assetCode string) error
	AdjustAllOffers(ctx context.Context, owner *keypair.Full, vaultAddress string) error
}

// OfferExecutor recomputes a vault's standing resale offers.
type OfferExecutor struct {
	bridges bridge.Repository
	vaults  OfferAdjuster
	logger  *slog.Logger
}

// NewOfferExecutor creates the executor for OFFER_ADJUSTMENT events.
func NewOfferExecutor(logger *slog.Logger, bridges bridge.Repository, vaults OfferAdjuster) *OfferExecutor {
	return &OfferExecutor{bridges: bridges, vaults: vaults, logger: logger}
}

// Execute adjusts the offers of the tenant's primary account for the named
// vault asset, or for every vault-issued asset when the payload does not pin
// one down. The stored bridge, not the payload, is the authority on the
// vault's address.
func (x *OfferExecutor) Execute(ctx context.Context, e *event.OutboundEvent) error {
	adjustment, err := e.OfferAdjustment()
	if err != nil {
		return shared.NewConfigurationError("components.OfferExecutor", err)
	}

	b, err := x.bridges.GetByTenantID(ctx, adjustment.TenantID)
	if err != nil {
		if errors.Is(err, bridge.ErrBridgeNotFound{}) {
			return shared.NewRoutingError("components.OfferExecutor", "no bridge for tenant "+adjustment.TenantID.String())
		}
		return shared.NewConfigurationError("components.OfferExecutor", err)
	}
	if !b.HasVault() {
		return shared.NewRoutingError("components.OfferExecutor", "tenant "+adjustment.TenantID.String()+" has no vault")
	}

	owner, err := b.KeyPair()
	if err != nil {
		return err
	}

	if adjustment.AssetCode != "" {
		return x.vaults.AdjustOffers(ctx, owner, *b.VaultAddress, adjustment.AssetCode)
	}
	return x.vaults.AdjustAllOffers(ctx, owner, *b.VaultAddress)
}
