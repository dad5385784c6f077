package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/platform/persistence"
)

// BridgeRepository implements the bridge.Repository interface for PostgreSQL
type BridgeRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBridgeRepository creates a new PostgreSQL bridge repository
func NewBridgeRepository(logger *slog.Logger, db *persistence.PostgresDB) bridge.Repository {
	return &BridgeRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *BridgeRepository) WithTx(tx pgx.Tx) bridge.Repository {
	return &BridgeRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new bridge. The tenant id is the primary key, so a second
// onboarding attempt for the same tenant fails with ErrDuplicateBridge.
func (r *BridgeRepository) Create(ctx context.Context, b *bridge.Bridge) error {
	query := `
		INSERT INTO bridges (tenant_id, account_address, account_seed, vault_address, vault_seed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.querier.Exec(ctx, query,
		b.TenantID,
		b.AccountAddress,
		b.AccountSeed,
		b.VaultAddress,
		b.VaultSeed,
		b.CreatedAt,
		b.UpdatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return bridge.ErrDuplicateBridge{TenantID: b.TenantID}
		}
		r.logger.Error("Failed to create bridge",
			"tenant_id", b.TenantID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	return nil
}

// GetByTenantID retrieves the bridge owned by a tenant.
// Returns ErrBridgeNotFound if the tenant was never onboarded.
func (r *BridgeRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*bridge.Bridge, error) {
	query := `
		SELECT tenant_id, account_address, account_seed, vault_address, vault_seed, created_at, updated_at
		FROM bridges
		WHERE tenant_id = $1
	`

	return r.scanBridge(ctx, tenantID, r.querier.QueryRow(ctx, query, tenantID))
}

// GetByAccountAddress resolves a ledger account back to its owning bridge.
// Used by the effect processor to decide whether an effect concerns a tenant.
func (r *BridgeRepository) GetByAccountAddress(ctx context.Context, address string) (*bridge.Bridge, error) {
	query := `
		SELECT tenant_id, account_address, account_seed, vault_address, vault_seed, created_at, updated_at
		FROM bridges
		WHERE account_address = $1
	`

	return r.scanBridge(ctx, uuid.Nil, r.querier.QueryRow(ctx, query, address))
}

// ListAccountAddresses returns every primary account address with a bridge,
// for establishing the per-account effect subscriptions.
func (r *BridgeRepository) ListAccountAddresses(ctx context.Context) ([]string, error) {
	query := `
		SELECT account_address
		FROM bridges
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list bridge account addresses", "error", err)
		return nil, fmt.Errorf("failed to list bridge account addresses: %w", err)
	}
	defer rows.Close()

	var addresses []string
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			r.logger.Error("Failed to scan bridge account address", "error", err)
			return nil, fmt.Errorf("failed to scan bridge account address: %w", err)
		}
		addresses = append(addresses, address)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over bridge account addresses", "error", err)
		return nil, fmt.Errorf("error iterating over bridge account addresses: %w", err)
	}

	return addresses, nil
}

// Update persists vault attachment and timestamp changes
func (r *BridgeRepository) Update(ctx context.Context, b *bridge.Bridge) error {
	query := `
		UPDATE bridges
		SET vault_address = $1, vault_seed = $2, updated_at = $3
		WHERE tenant_id = $4
	`

	result, err := r.querier.Exec(ctx, query,
		b.VaultAddress,
		b.VaultSeed,
		time.Now(),
		b.TenantID,
	)
	if err != nil {
		r.logger.Error("Failed to update bridge",
			"tenant_id", b.TenantID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to update bridge: %w", err)
	}

	if result.RowsAffected() == 0 {
		return bridge.ErrBridgeNotFound{TenantID: b.TenantID}
	}

	return nil
}

// Delete removes the bridge and with it the tenant's private keys.
// Keys are retained only as long as the bridge exists.
func (r *BridgeRepository) Delete(ctx context.Context, tenantID uuid.UUID) error {
	query := `
		DELETE FROM bridges
		WHERE tenant_id = $1
	`

	result, err := r.querier.Exec(ctx, query, tenantID)
	if err != nil {
		r.logger.Error("Failed to delete bridge",
			"tenant_id", tenantID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to delete bridge: %w", err)
	}

	if result.RowsAffected() == 0 {
		return bridge.ErrBridgeNotFound{TenantID: tenantID}
	}

	return nil
}

func (r *BridgeRepository) scanBridge(_ context.Context, tenantID uuid.UUID, row pgx.Row) (*bridge.Bridge, error) {
	var b bridge.Bridge
	err := row.Scan(
		&b.TenantID,
		&b.AccountAddress,
		&b.AccountSeed,
		&b.VaultAddress,
		&b.VaultSeed,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bridge.ErrBridgeNotFound{TenantID: tenantID}
		}
		r.logger.Error("Failed to scan bridge", "error", err)
		return nil, fmt.Errorf("failed to scan bridge: %w", err)
	}
	return &b, nil
}
