// Package event holds the durable outbound side effects of the bridge: ledger
// payments, accounting-core notifications, and vault offer adjustments. One
// event is one attempt-until-success-or-exhaustion unit of work.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind identifies the side effect an outbound event performs.
type Kind string

const (
	KindLedgerPayment    Kind = "LEDGER_PAYMENT"
	KindCoreNotification Kind = "CORE_NOTIFICATION"
	KindOfferAdjustment  Kind = "OFFER_ADJUSTMENT"
)

// Direction distinguishes the two accounting-core notifications.
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
)

// OutboundEvent persists one side effect with its remaining retry budget.
// Events are never deleted; they end either processed or retry-exhausted,
// and exhausted events stay processed=false for manual remediation.
type OutboundEvent struct {
	ID          uuid.UUID       `json:"id"`
	Kind        Kind            `json:"kind"`
	LockKey     string          `json:"lock_key"`
	Payload     json.RawMessage `json:"payload"`
	Processed   bool            `json:"processed"`
	RetriesLeft int             `json:"retries_left"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PaymentNotice tells the accounting core about a ledger payment. The core's
// adapter is idempotent per (tenant, event id).
type PaymentNotice struct {
	TenantID   uuid.UUID       `json:"tenant_id"`
	EventID    uuid.UUID       `json:"event_id"`
	Direction  Direction       `json:"direction"`
	Amount     decimal.Decimal `json:"amount"`
	AssetCode  string          `json:"asset_code"`
	Issuer     string          `json:"issuer"`
	Account    string          `json:"account"`
	SubAccount string          `json:"sub_account,omitempty"`
	Cursor     string          `json:"cursor,omitempty"`
}

// PaymentCommand is a core-initiated payment to be executed on the ledger.
type PaymentCommand struct {
	TenantID  uuid.UUID       `json:"tenant_id"`
	Target    string          `json:"target"`
	Amount    decimal.Decimal `json:"amount"`
	AssetCode string          `json:"asset_code"`
}

// OfferAdjustment asks for a vault's resale offers to be recomputed after a
// credit or debit touched the vault-bearing account.
type OfferAdjustment struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	AssetCode string    `json:"asset_code"`
	Issuer    string    `json:"issuer"`
}

// NewCoreNotification queues a payment notice, locked by the event's own id.
func NewCoreNotification(notice *PaymentNotice, retryBudget int) (*OutboundEvent, error) {
	id := uuid.New()
	notice.EventID = id
	payload, err := json.Marshal(notice)
	if err != nil {
		return nil, err
	}
	return newEvent(id, KindCoreNotification, id.String(), payload, retryBudget), nil
}

// NewLedgerPayment queues a core-initiated payment, locked by the event's own id.
func NewLedgerPayment(command *PaymentCommand, retryBudget int) (*OutboundEvent, error) {
	payload, err := json.Marshal(command)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	return newEvent(id, KindLedgerPayment, id.String(), payload, retryBudget), nil
}

// NewOfferAdjustment queues an offer recomputation. The lock key is the
// (tenant, vault issuer) pair: every recomputation touching the same vault's
// offers must serialize, including the wildcard form with no asset code, or
// two of them race on stale offer ids and burn retries on op_offer_not_found.
func NewOfferAdjustment(adjustment *OfferAdjustment, retryBudget int) (*OutboundEvent, error) {
	payload, err := json.Marshal(adjustment)
	if err != nil {
		return nil, err
	}
	key := adjustment.TenantID.String() + "/" + adjustment.Issuer
	return newEvent(uuid.New(), KindOfferAdjustment, key, payload, retryBudget), nil
}

func newEvent(id uuid.UUID, kind Kind, lockKey string, payload json.RawMessage, retryBudget int) *OutboundEvent {
	now := time.Now()
	return &OutboundEvent{
		ID:          id,
		Kind:        kind,
		LockKey:     lockKey,
		Payload:     payload,
		Processed:   false,
		RetriesLeft: retryBudget,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Dispatchable reports whether the event may consume another attempt.
func (e *OutboundEvent) Dispatchable() bool {
	return !e.Processed && e.RetriesLeft > 0
}

// CoreNotification extracts the payment notice from the payload.
func (e *OutboundEvent) CoreNotification() (*PaymentNotice, error) {
	var notice PaymentNotice
	if err := json.Unmarshal(e.Payload, &notice); err != nil {
		return nil, err
	}
	return &notice, nil
}

// LedgerPayment extracts the payment command from the payload.
func (e *OutboundEvent) LedgerPayment() (*PaymentCommand, error) {
	var command PaymentCommand
	if err := json.Unmarshal(e.Payload, &command); err != nil {
		return nil, err
	}
	return &command, nil
}

// OfferAdjustment extracts the offer adjustment from the payload.
func (e *OutboundEvent) OfferAdjustment() (*OfferAdjustment, error) {
	var adjustment OfferAdjustment
	if err := json.Unmarshal(e.Payload, &adjustment); err != nil {
		return nil, err
	}
	return &adjustment, nil
}
