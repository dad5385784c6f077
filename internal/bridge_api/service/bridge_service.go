package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/domain/cursor"
)

// BridgeServiceImpl implements the BridgeService interface
type BridgeServiceImpl struct {
	bridges bridge.Repository
	orphans bridge.OrphanRepository
	cursors cursor.Repository
	ledger  Ledger
	logger  *slog.Logger
}

// NewBridgeService creates a new bridge service
func NewBridgeService(logger *slog.Logger, bridges bridge.Repository, orphans bridge.OrphanRepository, cursors cursor.Repository, ledger Ledger) BridgeService {
	return &BridgeServiceImpl{
		bridges: bridges,
		orphans: orphans,
		cursors: cursors,
		ledger:  ledger,
		logger:  logger,
	}
}

// CreateBridge creates a funded ledger account for the tenant and persists the
// mapping. An account that was created on the ledger but could not be persisted
// is recorded as an orphan; its funds would otherwise be unreachable.
func (s *BridgeServiceImpl) CreateBridge(ctx context.Context, tenantID uuid.UUID) (*bridge.Bridge, error) {
	_, err := s.bridges.GetByTenantID(ctx, tenantID)
	if err == nil {
		return nil, bridge.ErrDuplicateBridge{TenantID: tenantID}
	}
	if !errors.Is(err, bridge.ErrBridgeNotFound{}) {
		return nil, err
	}

	kp, err := s.ledger.CreateAccount(ctx)
	if err != nil {
		return nil, err
	}

	b := bridge.NewBridge(tenantID, kp)
	if err := s.bridges.Create(ctx, b); err != nil {
		s.recordOrphan(ctx, tenantID, kp.Address(), false, "bridge persistence failed after account creation: "+err.Error())
		return nil, err
	}

	s.logger.Info("Bridge created",
		"tenant_id", tenantID,
		"account", b.AccountAddress)
	return b, nil
}

// AttachVault creates the tenant's asset-issuing vault account. A bridge holds
// at most one vault; a second request is a conflict, never a replacement.
func (s *BridgeServiceImpl) AttachVault(ctx context.Context, tenantID uuid.UUID) (*bridge.Bridge, error) {
	b, err := s.bridges.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if b.HasVault() {
		return nil, bridge.ErrVaultAlreadyAttached
	}

	kp, err := s.ledger.CreateVaultAccount(ctx)
	if err != nil {
		return nil, err
	}

	if err := b.AttachVault(kp); err != nil {
		return nil, err
	}
	if err := s.bridges.Update(ctx, b); err != nil {
		s.recordOrphan(ctx, tenantID, kp.Address(), true, "bridge persistence failed after vault creation: "+err.Error())
		return nil, err
	}

	s.logger.Info("Vault attached",
		"tenant_id", tenantID,
		"vault", *b.VaultAddress)
	return b, nil
}

// DeleteBridge offboards a tenant: remove the vault and primary accounts from
// the ledger, then drop the mapping. Removal is best effort; an account the
// ledger refuses to release, e.g. a vault whose asset is still in circulation,
// is recorded as an orphan and the offboarding proceeds.
func (s *BridgeServiceImpl) DeleteBridge(ctx context.Context, tenantID uuid.UUID) error {
	b, err := s.bridges.GetByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}

	if b.HasVault() {
		if err := s.removeAccount(ctx, b, true); err != nil {
			s.recordOrphan(ctx, tenantID, *b.VaultAddress, true, "vault removal failed: "+err.Error())
		}
	}
	if err := s.removeAccount(ctx, b, false); err != nil {
		s.recordOrphan(ctx, tenantID, b.AccountAddress, false, "account removal failed: "+err.Error())
	}

	if err := s.bridges.Delete(ctx, tenantID); err != nil {
		return err
	}

	s.logger.Info("Bridge deleted", "tenant_id", tenantID)
	return nil
}

// ListOrphans returns every account left behind by a failed removal.
func (s *BridgeServiceImpl) ListOrphans(ctx context.Context) ([]*bridge.OrphanedAccount, error) {
	return s.orphans.List(ctx)
}

func (s *BridgeServiceImpl) removeAccount(ctx context.Context, b *bridge.Bridge, vault bool) error {
	if vault {
		kp, err := b.VaultKeyPair()
		if err != nil {
			return err
		}
		// vault removal refuses while the vault's asset is in circulation
		return s.ledger.RemoveVaultAccount(ctx, kp)
	}
	kp, err := b.KeyPair()
	if err != nil {
		return err
	}
	return s.ledger.RemoveAccount(ctx, kp)
}

// recordOrphan captures an unreleasable account together with the stream
// position at the time, so an operator can reconcile it later. Failing to
// record is logged but never surfaced; the caller's error matters more.
func (s *BridgeServiceImpl) recordOrphan(ctx context.Context, tenantID uuid.UUID, address string, vault bool, reason string) {
	lastCursor, err := s.cursors.LatestProcessed(ctx)
	if err != nil {
		s.logger.Warn("Could not resolve last cursor for orphan record", "error", err)
		lastCursor = ""
	}

	orphan := bridge.NewOrphanedAccount(tenantID, address, vault, reason, lastCursor)
	if err := s.orphans.Create(ctx, orphan); err != nil {
		s.logger.Error("Failed to record orphaned account",
			"tenant_id", tenantID,
			"address", address,
			"error", err)
		return
	}

	s.logger.Warn("Orphaned account recorded",
		"tenant_id", tenantID,
		"address", address,
		"vault", vault,
		"reason", reason)
}
