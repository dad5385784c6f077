package stellar

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
	"github.com/stellar/go/clients/horizonclient"
	hProtocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/txnbuild"
)

// PathPlan is a fully resolved cross-asset payment: the source asset to
// spend, the ceiling on what it may cost, the concrete destination asset,
// and the conversion hops in between.
type PathPlan struct {
	SendCode   string
	SendIssuer string
	SendMax    decimal.Decimal
	DestCode   string
	DestIssuer string
	DestAmount decimal.Decimal
	Hops       []txnbuild.Asset
}

// PathFinder plans cross-asset payments. The destination names only an asset
// code; the finder picks the concrete issuer and the source asset by probing
// the ledger's path-finding endpoint.
type PathFinder struct {
	client HorizonClient
	logger *slog.Logger
}

// NewPathFinder creates a path finder over the given Horizon client.
func NewPathFinder(logger *slog.Logger, client HorizonClient) *PathFinder {
	return &PathFinder{client: client, logger: logger}
}

type assetKey struct {
	code   string
	issuer string
}

// FindPath resolves a payment of amount destCode into the destination
// account. Candidate destination assets are the destination's trustlines in
// destCode with enough remaining trust; candidate source assets are whatever
// the source holds. The first quoted path the source can afford wins. When
// nothing matches, the failure is a routing error: retrying cannot help.
func (f *PathFinder) FindPath(ctx context.Context, source, destination string, amount decimal.Decimal, destCode string) (*PathPlan, error) {
	const op = "pathfinder.FindPath"

	destAccount, err := f.client.AccountDetail(horizonclient.AccountRequest{AccountID: destination})
	if err != nil {
		return nil, classify(shared.FailurePayment, op, err)
	}

	var candidateIssuers []string
	for _, b := range destAccount.Balances {
		if b.Asset.Type == nativeAssetType || b.Asset.Code != destCode {
			continue
		}
		balance, err := parseAmount(op, b.Balance)
		if err != nil {
			return nil, err
		}
		limit, err := parseAmount(op, b.Limit)
		if err != nil {
			return nil, err
		}
		if limit.Sub(balance).GreaterThanOrEqual(amount) {
			candidateIssuers = append(candidateIssuers, b.Asset.Issuer)
		}
	}
	if len(candidateIssuers) == 0 {
		return nil, shared.NewRoutingError(op, "destination has no trustline in "+destCode+" with enough remaining trust")
	}
	// Horizon's balance order is not stable across calls
	sort.Strings(candidateIssuers)

	sourceAccount, err := f.client.AccountDetail(horizonclient.AccountRequest{AccountID: source})
	if err != nil {
		return nil, classify(shared.FailurePayment, op, err)
	}

	held := make(map[assetKey]decimal.Decimal)
	for _, b := range sourceAccount.Balances {
		if b.Asset.Type == nativeAssetType {
			continue
		}
		balance, err := parseAmount(op, b.Balance)
		if err != nil {
			return nil, err
		}
		if balance.IsPositive() {
			held[assetKey{b.Asset.Code, b.Asset.Issuer}] = balance
		}
	}
	if len(held) == 0 {
		return nil, shared.NewRoutingError(op, "source account holds no assets to pay with")
	}

	for _, issuer := range candidateIssuers {
		page, err := f.client.StrictReceivePaths(horizonclient.PathsRequest{
			DestinationAccount:     destination,
			DestinationAssetType:   assetType(destCode),
			DestinationAssetCode:   destCode,
			DestinationAssetIssuer: issuer,
			DestinationAmount:      amountString(amount),
			SourceAccount:          source,
		})
		if err != nil {
			return nil, classify(shared.FailurePayment, op, err)
		}

		for _, record := range page.Embedded.Records {
			if record.SourceAssetType == nativeAssetType {
				continue
			}
			cost, err := parseAmount(op, record.SourceAmount)
			if err != nil {
				return nil, err
			}
			balance, ok := held[assetKey{record.SourceAssetCode, record.SourceAssetIssuer}]
			if !ok || balance.LessThan(cost) {
				continue
			}

			plan := &PathPlan{
				SendCode:   record.SourceAssetCode,
				SendIssuer: record.SourceAssetIssuer,
				SendMax:    cost,
				DestCode:   destCode,
				DestIssuer: issuer,
				DestAmount: amount,
				Hops:       hopAssets(record.Path),
			}
			f.logger.Info("Payment path resolved",
				"source", source,
				"destination", destination,
				"send_asset", plan.SendCode+":"+plan.SendIssuer,
				"send_max", plan.SendMax.String(),
				"dest_asset", plan.DestCode+":"+plan.DestIssuer,
				"hops", len(plan.Hops))
			return plan, nil
		}
	}

	return nil, shared.NewRoutingError(op, "no viable payment path into "+destCode)
}

func hopAssets(path []hProtocol.Asset) []txnbuild.Asset {
	hops := make([]txnbuild.Asset, 0, len(path))
	for _, a := range path {
		if a.Type == nativeAssetType {
			hops = append(hops, txnbuild.NativeAsset{})
			continue
		}
		hops = append(hops, creditAsset(a.Code, a.Issuer))
	}
	return hops
}
