package bridge

import (
	"strings"

	"github.com/stellar-tenant-bridge/internal/domain/shared"
	"github.com/stellar/go/strkey"
)

// AccountID identifies a ledger account: a public key plus an optional
// sub-account token. The token travels as the payment memo and routes funds
// to a sub-ledger inside a shared account. Immutable value type.
type AccountID struct {
	Address    string
	SubAccount string
}

// ParseAccountID parses the textual form "G...:" plus an optional sub-account
// token after the colon. The address part must be a valid ed25519 public key.
func ParseAccountID(s string) (AccountID, error) {
	address := s
	sub := ""
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		address = s[:idx]
		sub = s[idx+1:]
		if sub == "" {
			return AccountID{}, shared.NewRoutingError("bridge.ParseAccountID", "empty sub-account token in "+s)
		}
	}

	if !strkey.IsValidEd25519PublicKey(address) {
		return AccountID{}, shared.NewRoutingError("bridge.ParseAccountID", "malformed account address "+address)
	}

	return AccountID{Address: address, SubAccount: sub}, nil
}

// NewAccountID builds an AccountID without a sub-account token.
func NewAccountID(address string) AccountID {
	return AccountID{Address: address}
}

// Equal compares by (address, sub-account).
func (a AccountID) Equal(other AccountID) bool {
	return a.Address == other.Address && a.SubAccount == other.SubAccount
}

// HasSubAccount reports whether payments to this account need a memo.
func (a AccountID) HasSubAccount() bool {
	return a.SubAccount != ""
}

func (a AccountID) String() string {
	if a.SubAccount == "" {
		return a.Address
	}
	return a.Address + ":" + a.SubAccount
}
