package bridge

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages bridge persistence
type Repository interface {
	Create(ctx context.Context, bridge *Bridge) error
	GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*Bridge, error)
	GetByAccountAddress(ctx context.Context, address string) (*Bridge, error)
	ListAccountAddresses(ctx context.Context) ([]string, error)
	Update(ctx context.Context, bridge *Bridge) error
	Delete(ctx context.Context, tenantID uuid.UUID) error
	WithTx(tx pgx.Tx) Repository
}

// OrphanRepository records accounts left behind by failed removals
type OrphanRepository interface {
	Create(ctx context.Context, orphan *OrphanedAccount) error
	List(ctx context.Context) ([]*OrphanedAccount, error)
}

// ErrBridgeNotFound indicates missing bridge
type ErrBridgeNotFound struct {
	TenantID uuid.UUID
}

func (e ErrBridgeNotFound) Error() string {
	return "bridge not found for tenant: " + e.TenantID.String()
}

// Is implements the errors.Is interface for ErrBridgeNotFound
func (e ErrBridgeNotFound) Is(target error) bool {
	t, ok := target.(ErrBridgeNotFound)
	if !ok {
		return false
	}
	if t.TenantID == uuid.Nil {
		return true
	}
	return e.TenantID == t.TenantID
}

// ErrDuplicateBridge indicates tenant uniqueness violation
type ErrDuplicateBridge struct {
	TenantID uuid.UUID
}

func (e ErrDuplicateBridge) Error() string {
	return "bridge already exists for tenant: " + e.TenantID.String()
}
