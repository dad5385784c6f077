package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/platform/persistence"
)

// OrphanRepository implements the bridge.OrphanRepository interface for PostgreSQL
type OrphanRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOrphanRepository creates a new PostgreSQL orphaned account repository
func NewOrphanRepository(logger *slog.Logger, db *persistence.PostgresDB) bridge.OrphanRepository {
	return &OrphanRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create records an account whose removal failed, for manual reconciliation
func (r *OrphanRepository) Create(ctx context.Context, o *bridge.OrphanedAccount) error {
	query := `
		INSERT INTO orphaned_accounts (tenant_id, address, vault_account, reason, last_cursor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		o.TenantID,
		o.Address,
		o.VaultAccount,
		o.Reason,
		o.LastCursor,
		o.CreatedAt,
	).Scan(&o.ID)

	if err != nil {
		r.logger.Error("Failed to create orphaned account record",
			"tenant_id", o.TenantID.String(),
			"address", o.Address,
			"error", err,
		)
		return fmt.Errorf("failed to create orphaned account record: %w", err)
	}

	return nil
}

// List returns every orphaned account, oldest first
func (r *OrphanRepository) List(ctx context.Context) ([]*bridge.OrphanedAccount, error) {
	query := `
		SELECT id, tenant_id, address, vault_account, reason, last_cursor, created_at
		FROM orphaned_accounts
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list orphaned accounts", "error", err)
		return nil, fmt.Errorf("failed to list orphaned accounts: %w", err)
	}
	defer rows.Close()

	var orphans []*bridge.OrphanedAccount
	for rows.Next() {
		var o bridge.OrphanedAccount
		err := rows.Scan(
			&o.ID,
			&o.TenantID,
			&o.Address,
			&o.VaultAccount,
			&o.Reason,
			&o.LastCursor,
			&o.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan orphaned account", "error", err)
			return nil, fmt.Errorf("failed to scan orphaned account: %w", err)
		}
		orphans = append(orphans, &o)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over orphaned accounts", "error", err)
		return nil, fmt.Errorf("error iterating over orphaned accounts: %w", err)
	}

	return orphans, nil
}
