// Package stellar wraps the remote Horizon API: sequenced transaction
// submission, trust and offer management, path finding, and the effect
// stream. Only the operations the bridge needs are covered.
package stellar

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stellar-tenant-bridge/internal/config"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/txnbuild"
)

// HorizonClient is the slice of the Horizon API the bridge consumes.
// *horizonclient.Client satisfies it; tests substitute their own.
type HorizonClient interface {
	AccountDetail(request horizonclient.AccountRequest) (hProtocol.Account, error)
	SubmitTransaction(tx *txnbuild.Transaction) (hProtocol.Transaction, error)
	Assets(request horizonclient.AssetRequest) (hProtocol.AssetsPage, error)
	Offers(request horizonclient.OfferRequest) (hProtocol.OffersPage, error)
	StrictReceivePaths(request horizonclient.PathsRequest) (hProtocol.PathsPage, error)
	StreamEffects(ctx context.Context, request horizonclient.EffectRequest, handler horizonclient.EffectHandler) error
}

var _ HorizonClient = (*horizonclient.Client)(nil)

// NewHorizonClient builds a Horizon client with the configured endpoint and
// HTTP timeout. Timeouts surface as configuration-class failures downstream.
func NewHorizonClient(cfg *config.StellarConfig) *horizonclient.Client {
	return &horizonclient.Client{
		HorizonURL: cfg.HorizonURL,
		HTTP:       &http.Client{Timeout: cfg.SubmitTimeout},
	}
}

const nativeAssetType = "native"

// creditAsset converts a (code, issuer) pair into a txnbuild asset.
func creditAsset(code, issuer string) txnbuild.CreditAsset {
	return txnbuild.CreditAsset{Code: code, Issuer: issuer}
}

// assetType returns the Horizon asset type selector for a code.
func assetType(code string) horizonclient.AssetType {
	if len(code) <= 4 {
		return horizonclient.AssetType4
	}
	return horizonclient.AssetType12
}

// parseAmount converts a Horizon amount string. Horizon emits fixed 7-decimal
// strings; an unparsable value is a remote contract violation.
func parseAmount(op, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, shared.NewConfigurationError(op, err)
	}
	return d, nil
}

// amountString renders an amount the way Horizon expects it.
func amountString(d decimal.Decimal) string {
	return d.StringFixed(7)
}

// classify translates a Horizon error. A problem response means the remote
// rejected the submission (operation failure with the remote diagnostic);
// anything else is a transport-level, configuration-class condition.
func classify(kind shared.FailureKind, op string, err error) error {
	if err == nil {
		return nil
	}
	if herr := horizonclient.GetError(err); herr != nil {
		diagnostic := herr.Problem.Title
		if codes, codesErr := herr.ResultCodes(); codesErr == nil && codes != nil {
			diagnostic = codes.TransactionCode
			if len(codes.OperationCodes) > 0 {
				diagnostic += " [" + strings.Join(codes.OperationCodes, ", ") + "]"
			}
		}
		return shared.NewOperationError(kind, op, diagnostic, err)
	}
	return shared.NewConfigurationError(op, err)
}

// isBadSequence reports whether the remote rejected our cached sequence
// number, which forces a re-query on the next submission.
func isBadSequence(err error) bool {
	herr := horizonclient.GetError(err)
	if herr == nil {
		return false
	}
	codes, codesErr := herr.ResultCodes()
	return codesErr == nil && codes != nil && codes.TransactionCode == "tx_bad_seq"
}
