package stellar

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar-tenant-bridge/internal/domain/journal"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/protocols/horizon/effects"
)

// LedgerEffect is one decoded effect off the account stream, reduced to the
// closed set of variants the processor distinguishes. The cursor token is
// the stream's paging token and is globally unique per effect.
type LedgerEffect struct {
	Cursor     string
	Account    string
	Kind       journal.EffectKind
	AssetCode  string
	Issuer     string
	Native     bool
	Amount     decimal.Decimal
	ObservedAt time.Time
}

// EffectStreamer runs one long-lived effect subscription per bridge account.
type EffectStreamer struct {
	client HorizonClient
	logger *slog.Logger
}

// NewEffectStreamer creates a streamer over the given Horizon client.
func NewEffectStreamer(logger *slog.Logger, client HorizonClient) *EffectStreamer {
	return &EffectStreamer{client: client, logger: logger}
}

// Stream delivers decoded effects for one account to the handler until the
// context is canceled or the subscription fails. An empty cursor starts at
// the present; replaying history without a processed cursor mark would
// re-dispatch payments the accounting core has already seen.
func (s *EffectStreamer) Stream(ctx context.Context, account, cursor string, handler func(LedgerEffect)) error {
	if cursor == "" {
		cursor = "now"
	}

	s.logger.Info("Starting effect stream",
		"account", account,
		"cursor", cursor)

	request := horizonclient.EffectRequest{
		ForAccount: account,
		Cursor:     cursor,
	}

	err := s.client.StreamEffects(ctx, request, func(e effects.Effect) {
		handler(decodeEffect(e))
	})
	if err != nil && ctx.Err() == nil {
		return shared.NewConfigurationError("stream.Stream", err)
	}
	return nil
}

// decodeEffect collapses the stream's open effect hierarchy into the closed
// variant set. Everything that is not a credit or debit is Other: it is
// journaled and its cursor advanced, but it triggers nothing.
func decodeEffect(e effects.Effect) LedgerEffect {
	decoded := LedgerEffect{
		Cursor:     e.PagingToken(),
		Account:    e.GetAccount(),
		Kind:       journal.EffectOther,
		ObservedAt: time.Now().UTC(),
	}

	switch effect := e.(type) {
	case effects.AccountCredited:
		decoded.Kind = journal.EffectCredited
		decoded.AssetCode = effect.Asset.Code
		decoded.Issuer = effect.Asset.Issuer
		decoded.Native = effect.Asset.Type == nativeAssetType
		decoded.Amount = parseStreamAmount(effect.Amount)
	case effects.AccountDebited:
		decoded.Kind = journal.EffectDebited
		decoded.AssetCode = effect.Asset.Code
		decoded.Issuer = effect.Asset.Issuer
		decoded.Native = effect.Asset.Type == nativeAssetType
		decoded.Amount = parseStreamAmount(effect.Amount)
	}

	return decoded
}

// parseStreamAmount tolerates malformed amounts instead of dropping the
// effect: a zero-amount record still journals the cursor and the raw token
// remains available for reconciliation.
func parseStreamAmount(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero
	}
	return d
}
