package stellar

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/go/xdr"
)

// vault offers trade one-to-one against their counter assets
var unitPrice = xdr.Price{N: 1, D: 1}

// VaultManager keeps a tenant account's standing resale offers in line with
// what the account can actually honor. Offers sell the vault-issued asset
// against every other non-native asset the account holds.
type VaultManager struct {
	client  HorizonClient
	gateway *Gateway
	logger  *slog.Logger
}

// NewVaultManager creates a vault manager submitting through the gateway.
func NewVaultManager(logger *slog.Logger, client HorizonClient, gateway *Gateway) *VaultManager {
	return &VaultManager{client: client, gateway: gateway, logger: logger}
}

// DetermineOfferAmount bounds an offer by everything that could make it
// fail: the vault asset on hand, the room left on the vault trustline, and
// the counter asset the account could absorb in return.
func DetermineOfferAmount(vaultBalance, remainingTrust, counterBalance decimal.Decimal) decimal.Decimal {
	amount := vaultBalance
	if remainingTrust.LessThan(amount) {
		amount = remainingTrust
	}
	if counterBalance.LessThan(amount) {
		amount = counterBalance
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// AdjustOffers recomputes the owner account's resale offers for the vault
// asset (assetCode issued by vaultAddress) and submits every change in one
// transaction. Existing offers are amended in place through their ledger
// offer id; an offer whose computed amount reaches zero is deleted. With
// nothing to change, no transaction is submitted.
func (m *VaultManager) AdjustOffers(ctx context.Context, owner *keypair.Full, vaultAddress, assetCode string) error {
	const op = "vault.AdjustOffers"

	account, err := m.client.AccountDetail(horizonclient.AccountRequest{AccountID: owner.Address()})
	if err != nil {
		return classify(shared.FailureOffer, op, err)
	}

	vaultAsset := creditAsset(assetCode, vaultAddress)
	vaultBalance := decimal.Zero
	remainingTrust := decimal.Zero
	type counter struct {
		code    string
		issuer  string
		balance decimal.Decimal
	}
	var counters []counter

	for _, b := range account.Balances {
		if b.Asset.Type == nativeAssetType {
			continue
		}
		balance, err := parseAmount(op, b.Balance)
		if err != nil {
			return err
		}
		if b.Asset.Code == assetCode && b.Asset.Issuer == vaultAddress {
			limit, err := parseAmount(op, b.Limit)
			if err != nil {
				return err
			}
			vaultBalance = balance
			remainingTrust = limit.Sub(balance)
			continue
		}
		if b.Asset.Issuer == vaultAddress {
			// other assets issued by the same vault never trade against it
			continue
		}
		counters = append(counters, counter{code: b.Asset.Code, issuer: b.Asset.Issuer, balance: balance})
	}

	existing, err := m.standingOffers(owner.Address(), vaultAsset)
	if err != nil {
		return err
	}

	var ops []txnbuild.Operation
	for _, c := range counters {
		amount := DetermineOfferAmount(vaultBalance, remainingTrust, c.balance)
		offerID, hasOffer := existing[assetKey{c.code, c.issuer}]

		if amount.IsZero() && !hasOffer {
			continue
		}
		// amount zero with a standing offer deletes it
		ops = append(ops, &txnbuild.ManageSellOffer{
			Selling: vaultAsset,
			Buying:  creditAsset(c.code, c.issuer),
			Amount:  amountString(amount),
			Price:   unitPrice,
			OfferID: offerID,
		})
	}

	if len(ops) == 0 {
		m.logger.Debug("No offer adjustments needed",
			"account", owner.Address(),
			"asset", assetCode)
		return nil
	}

	if _, err := m.gateway.SubmitOfferOperations(ctx, owner, ops); err != nil {
		return err
	}

	m.logger.Info("Vault offers adjusted",
		"account", owner.Address(),
		"asset", assetCode,
		"offers", len(ops))
	return nil
}

// AdjustAllOffers recomputes offers for every asset the vault issues that
// the owner account holds. Used when a counter-asset balance changed and the
// affected vault assets are not known up front.
func (m *VaultManager) AdjustAllOffers(ctx context.Context, owner *keypair.Full, vaultAddress string) error {
	const op = "vault.AdjustAllOffers"

	account, err := m.client.AccountDetail(horizonclient.AccountRequest{AccountID: owner.Address()})
	if err != nil {
		return classify(shared.FailureOffer, op, err)
	}

	seen := make(map[string]bool)
	for _, b := range account.Balances {
		if b.Asset.Type == nativeAssetType || b.Asset.Issuer != vaultAddress {
			continue
		}
		if seen[b.Asset.Code] {
			continue
		}
		seen[b.Asset.Code] = true
		if err := m.AdjustOffers(ctx, owner, vaultAddress, b.Asset.Code); err != nil {
			return err
		}
	}
	return nil
}

// standingOffers maps each counter asset to the ledger id of the account's
// existing offer selling the vault asset against it.
func (m *VaultManager) standingOffers(address string, vaultAsset txnbuild.CreditAsset) (map[assetKey]int64, error) {
	const op = "vault.standingOffers"

	page, err := m.client.Offers(horizonclient.OfferRequest{
		ForAccount: address,
		Limit:      200,
	})
	if err != nil {
		return nil, classify(shared.FailureOffer, op, err)
	}

	offers := make(map[assetKey]int64)
	for _, o := range page.Embedded.Records {
		if o.Selling.Type == nativeAssetType || o.Buying.Type == nativeAssetType {
			continue
		}
		if o.Selling.Code != vaultAsset.Code || o.Selling.Issuer != vaultAsset.Issuer {
			continue
		}
		offers[assetKey{o.Buying.Code, o.Buying.Issuer}] = o.ID
	}
	return offers, nil
}
