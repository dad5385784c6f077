package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stellar/go/keypair"
	hProtocol "github.com/stellar/go/protocols/horizon"

	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/domain/journal"
)

// BridgeService defines operations on the tenant-to-account mapping
type BridgeService interface {
	CreateBridge(ctx context.Context, tenantID uuid.UUID) (*bridge.Bridge, error)
	AttachVault(ctx context.Context, tenantID uuid.UUID) (*bridge.Bridge, error)
	DeleteBridge(ctx context.Context, tenantID uuid.UUID) error
	ListOrphans(ctx context.Context) ([]*bridge.OrphanedAccount, error)
}

// PaymentService defines the synchronous ledger operations a tenant can request
type PaymentService interface {
	SetTrustline(ctx context.Context, tenantID uuid.UUID, assetCode, issuer string, maxTrust decimal.Decimal) (decimal.Decimal, error)
	Pay(ctx context.Context, tenantID uuid.UUID, target string, amount decimal.Decimal, assetCode string) (string, error)
	FundVault(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, assetCode string) (string, error)
	GetBalances(ctx context.Context, tenantID uuid.UUID) ([]hProtocol.Balance, error)
	GetEffects(ctx context.Context, tenantID uuid.UUID, page, perPage int) ([]*journal.Record, int64, error)
}

// Ledger is the slice of the gateway the API services depend on.
// *stellar.Gateway satisfies it.
type Ledger interface {
	CreateAccount(ctx context.Context) (*keypair.Full, error)
	CreateVaultAccount(ctx context.Context) (*keypair.Full, error)
	RemoveAccount(ctx context.Context, owner *keypair.Full) error
	RemoveVaultAccount(ctx context.Context, owner *keypair.Full) error
	SetTrustLimit(ctx context.Context, owner *keypair.Full, code, issuer string, requested decimal.Decimal) (decimal.Decimal, error)
	Pay(ctx context.Context, owner *keypair.Full, target bridge.AccountID, amount decimal.Decimal, code, issuer string) (string, error)
	Balances(ctx context.Context, address string) ([]hProtocol.Balance, error)
	GetBalanceByIssuer(ctx context.Context, address, code, issuer string) (decimal.Decimal, error)
	TrustLimit(ctx context.Context, address, code, issuer string) (decimal.Decimal, error)
}

// PaymentSender chooses between direct and path payments.
// *stellar.PaymentRouter satisfies it.
type PaymentSender interface {
	Pay(ctx context.Context, owner *keypair.Full, target bridge.AccountID, amount decimal.Decimal, code string) (string, error)
}
