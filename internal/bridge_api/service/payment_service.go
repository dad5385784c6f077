package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	hProtocol "github.com/stellar/go/protocols/horizon"

	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/domain/journal"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
)

// PaymentServiceImpl implements the PaymentService interface
type PaymentServiceImpl struct {
	bridges bridge.Repository
	journal journal.Repository
	ledger  Ledger
	router  PaymentSender
	logger  *slog.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(logger *slog.Logger, bridges bridge.Repository, journalRepo journal.Repository, ledger Ledger, router PaymentSender) PaymentService {
	return &PaymentServiceImpl{
		bridges: bridges,
		journal: journalRepo,
		ledger:  ledger,
		router:  router,
		logger:  logger,
	}
}

// SetTrustline establishes or resizes the tenant's trustline for an asset and
// returns the limit the ledger actually holds. Trusting the tenant's own vault
// is rejected before any ledger call: the vault issues to the tenant through
// the funding flow, and a self-referential trustline would let balances count
// twice.
func (s *PaymentServiceImpl) SetTrustline(ctx context.Context, tenantID uuid.UUID, assetCode, issuer string, maxTrust decimal.Decimal) (decimal.Decimal, error) {
	b, err := s.bridges.GetByTenantID(ctx, tenantID)
	if err != nil {
		return decimal.Zero, err
	}
	if b.IsVaultIssuer(issuer) {
		return decimal.Zero, shared.NewRoutingError("service.SetTrustline", "tenant cannot extend trust to its own vault "+issuer)
	}

	owner, err := b.KeyPair()
	if err != nil {
		return decimal.Zero, err
	}

	return s.ledger.SetTrustLimit(ctx, owner, assetCode, issuer, maxTrust)
}

// Pay delivers amount of assetCode from the tenant's primary account to the
// target, directly or through a conversion path.
func (s *PaymentServiceImpl) Pay(ctx context.Context, tenantID uuid.UUID, target string, amount decimal.Decimal, assetCode string) (string, error) {
	b, err := s.bridges.GetByTenantID(ctx, tenantID)
	if err != nil {
		return "", err
	}

	targetID, err := bridge.ParseAccountID(target)
	if err != nil {
		return "", err
	}

	owner, err := b.KeyPair()
	if err != nil {
		return "", err
	}

	return s.router.Pay(ctx, owner, targetID, amount, assetCode)
}

// FundVault issues amount of the vault's asset into the tenant's primary
// account. The primary account's trustline towards the vault is widened first
// when the new balance would not fit; this internal trustline is the one place
// a tenant holds its own vault's asset.
func (s *PaymentServiceImpl) FundVault(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal, assetCode string) (string, error) {
	b, err := s.bridges.GetByTenantID(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if !b.HasVault() {
		return "", bridge.ErrNoVaultAttached
	}

	owner, err := b.KeyPair()
	if err != nil {
		return "", err
	}
	vault, err := b.VaultKeyPair()
	if err != nil {
		return "", err
	}

	balance, err := s.ledger.GetBalanceByIssuer(ctx, b.AccountAddress, assetCode, *b.VaultAddress)
	if err != nil {
		return "", err
	}
	limit, err := s.ledger.TrustLimit(ctx, b.AccountAddress, assetCode, *b.VaultAddress)
	if err != nil {
		return "", err
	}

	required := balance.Add(amount)
	if limit.LessThan(required) {
		if _, err := s.ledger.SetTrustLimit(ctx, owner, assetCode, *b.VaultAddress, required); err != nil {
			return "", err
		}
	}

	hash, err := s.ledger.Pay(ctx, vault, bridge.NewAccountID(b.AccountAddress), amount, assetCode, *b.VaultAddress)
	if err != nil {
		return "", err
	}

	s.logger.Info("Vault funded",
		"tenant_id", tenantID,
		"asset", assetCode,
		"amount", amount.String(),
		"hash", hash)
	return hash, nil
}

// GetBalances returns the raw ledger balances of the tenant's primary account.
func (s *PaymentServiceImpl) GetBalances(ctx context.Context, tenantID uuid.UUID) ([]hProtocol.Balance, error) {
	b, err := s.bridges.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.ledger.Balances(ctx, b.AccountAddress)
}

// GetEffects returns a page of the journaled ledger effects observed on the
// tenant's primary account, newest first, with the total count for pagination.
func (s *PaymentServiceImpl) GetEffects(ctx context.Context, tenantID uuid.UUID, page, perPage int) ([]*journal.Record, int64, error) {
	b, err := s.bridges.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	records, err := s.journal.GetByAccount(ctx, b.AccountAddress, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.journal.CountByAccount(ctx, b.AccountAddress)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
