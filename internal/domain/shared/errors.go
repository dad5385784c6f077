package shared

import (
	"errors"
	"fmt"
)

// FailureKind classifies every failure the bridge can report. The dispatcher
// matches over this enum to decide whether an outbound event keeps its
// remaining retries or is exhausted immediately.
type FailureKind string

const (
	// FailureConfiguration covers unreachable Horizon endpoints and unusable
	// funding keys. Never retried automatically; surfaced to the operator.
	FailureConfiguration FailureKind = "CONFIGURATION"

	FailureAccountCreation FailureKind = "ACCOUNT_CREATION_FAILED"
	FailureTrustline       FailureKind = "TRUSTLINE_FAILED"
	FailurePayment         FailureKind = "PAYMENT_FAILED"
	FailureOffer           FailureKind = "OFFER_FAILED"

	// FailureRouting covers malformed addresses and missing payment paths.
	// Retrying cannot change the outcome, so the retry count is forced to 0.
	FailureRouting FailureKind = "ROUTING"

	// FailureIntegrity means a stored secret seed no longer reproduces the
	// recorded public address. Fatal for that tenant's operations.
	FailureIntegrity FailureKind = "INTEGRITY"
)

// Retryable reports whether a failure of this kind may consume another attempt
// from an outbound event's retry budget.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureAccountCreation, FailureTrustline, FailurePayment, FailureOffer:
		return true
	default:
		return false
	}
}

// BridgeError is the single typed error the ledger-facing and core-facing
// calls return. Diagnostic carries the remote result codes when Horizon
// rejected a transaction.
type BridgeError struct {
	Kind       FailureKind
	Op         string // Logical operation, e.g. "gateway.SetTrustLimit"
	Diagnostic string // Remote diagnostic, empty when none is available
	Err        error  // Underlying cause, may be nil
}

func (e *BridgeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Diagnostic != "" {
		msg += " (" + e.Diagnostic + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// NewConfigurationError reports a remote-unreachable or bad-credential condition.
func NewConfigurationError(op string, err error) *BridgeError {
	return &BridgeError{Kind: FailureConfiguration, Op: op, Err: err}
}

// NewOperationError reports a rejected submission with its remote diagnostic.
func NewOperationError(kind FailureKind, op, diagnostic string, err error) *BridgeError {
	return &BridgeError{Kind: kind, Op: op, Diagnostic: diagnostic, Err: err}
}

// NewRoutingError reports a malformed address or an absent payment path.
func NewRoutingError(op, diagnostic string) *BridgeError {
	return &BridgeError{Kind: FailureRouting, Op: op, Diagnostic: diagnostic}
}

// NewIntegrityError reports a seed/address mismatch for a stored key pair.
func NewIntegrityError(op, diagnostic string) *BridgeError {
	return &BridgeError{Kind: FailureIntegrity, Op: op, Diagnostic: diagnostic}
}

// KindOf extracts the failure kind from an error chain. Errors outside the
// taxonomy are treated as configuration-class: they are never consumed
// silently by the retry machinery.
func KindOf(err error) FailureKind {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Kind
	}
	return FailureConfiguration
}
