package bridge

import (
	"time"

	"github.com/google/uuid"
)

// OrphanedAccount records a ledger account whose removal failed irrecoverably,
// for manual reconciliation. Created only when offboarding cannot remove the
// account, e.g. a vault whose asset is still in circulation.
type OrphanedAccount struct {
	ID           int64     `json:"id"`
	TenantID     uuid.UUID `json:"tenant_id"`
	Address      string    `json:"address"`
	VaultAccount bool      `json:"vault_account"`
	Reason       string    `json:"reason"`
	LastCursor   string    `json:"last_cursor,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewOrphanedAccount captures the state needed to reconcile an account later.
func NewOrphanedAccount(tenantID uuid.UUID, address string, vault bool, reason, lastCursor string) *OrphanedAccount {
	return &OrphanedAccount{
		TenantID:     tenantID,
		Address:      address,
		VaultAccount: vault,
		Reason:       reason,
		LastCursor:   lastCursor,
		CreatedAt:    time.Now(),
	}
}
