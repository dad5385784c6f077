package stellar

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar/go/keypair"
)

// PaymentRouter decides how a payment reaches its target: a direct payment
// when the source already holds an asset the target can absorb, a path
// payment through the exchange otherwise.
type PaymentRouter struct {
	gateway *Gateway
	finder  *PathFinder
	logger  *slog.Logger
}

// NewPaymentRouter creates a router over the gateway and path finder.
func NewPaymentRouter(logger *slog.Logger, gateway *Gateway, finder *PathFinder) *PaymentRouter {
	return &PaymentRouter{gateway: gateway, finder: finder, logger: logger}
}

// Pay delivers amount of code to the target. Direct delivery needs a source
// holding and a target trustline on the same concrete asset, both with room
// for the amount; everything else goes through path finding, whose absence of
// a route is a routing failure the retry machinery will not retry.
func (r *PaymentRouter) Pay(ctx context.Context, owner *keypair.Full, target bridge.AccountID, amount decimal.Decimal, code string) (string, error) {
	sourceBalances, err := r.gateway.Balances(ctx, owner.Address())
	if err != nil {
		return "", err
	}
	targetBalances, err := r.gateway.Balances(ctx, target.Address)
	if err != nil {
		return "", err
	}

	for _, sb := range sourceBalances {
		if sb.Asset.Type == nativeAssetType || sb.Asset.Code != code {
			continue
		}
		held, err := parseAmount("router.Pay", sb.Balance)
		if err != nil {
			return "", err
		}
		if held.LessThan(amount) {
			continue
		}
		for _, tb := range targetBalances {
			if tb.Asset.Type == nativeAssetType || tb.Asset.Code != code || tb.Asset.Issuer != sb.Asset.Issuer {
				continue
			}
			balance, err := parseAmount("router.Pay", tb.Balance)
			if err != nil {
				return "", err
			}
			limit, err := parseAmount("router.Pay", tb.Limit)
			if err != nil {
				return "", err
			}
			if limit.Sub(balance).GreaterThanOrEqual(amount) {
				r.logger.Debug("Routing payment directly",
					"target", target.String(),
					"asset", code,
					"issuer", sb.Asset.Issuer)
				return r.gateway.Pay(ctx, owner, target, amount, code, sb.Asset.Issuer)
			}
		}
	}

	plan, err := r.finder.FindPath(ctx, owner.Address(), target.Address, amount, code)
	if err != nil {
		return "", err
	}
	return r.gateway.SubmitPathPayment(ctx, owner, target, plan)
}
