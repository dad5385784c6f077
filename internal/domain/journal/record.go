// Package journal holds the audit trail of observed ledger effects. Every
// effect seen on the stream is recorded here, including the ones the bridge
// ignores, so operators can reconcile the ledger against the accounting core.
package journal

import (
	"time"

	"github.com/shopspring/decimal"
)

// EffectKind is the closed set of effect variants the processor distinguishes,
// decided once at stream-decode time.
type EffectKind string

const (
	EffectCredited EffectKind = "CREDITED"
	EffectDebited  EffectKind = "DEBITED"
	EffectOther    EffectKind = "OTHER"
)

// Record is one observed ledger effect.
type Record struct {
	Cursor     string          `json:"cursor" bson:"cursor"`
	Account    string          `json:"account" bson:"account"`
	Kind       EffectKind      `json:"kind" bson:"kind"`
	AssetCode  string          `json:"asset_code,omitempty" bson:"asset_code,omitempty"`
	Issuer     string          `json:"issuer,omitempty" bson:"issuer,omitempty"`
	Native     bool            `json:"native" bson:"native"`
	Amount     decimal.Decimal `json:"amount" bson:"amount"`
	ObservedAt time.Time       `json:"observed_at" bson:"observed_at"`
}
