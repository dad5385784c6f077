package bridge

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
	"github.com/stellar/go/keypair"
)

// Common errors
var (
	ErrVaultAlreadyAttached = errors.New("vault account already attached")
	ErrNoVaultAttached      = errors.New("bridge has no vault account")
)

// Bridge maps one tenant to one primary ledger account and, optionally, one
// vault account issuing the tenant's own asset. Private keys live only as long
// as the bridge exists.
type Bridge struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	AccountAddress string    `json:"account_address"`
	AccountSeed    string    `json:"-"`
	VaultAddress   *string   `json:"vault_address,omitempty"`
	VaultSeed      *string   `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewBridge creates a bridge for a tenant from a freshly generated key pair.
func NewBridge(tenantID uuid.UUID, kp *keypair.Full) *Bridge {
	now := time.Now()
	return &Bridge{
		TenantID:       tenantID,
		AccountAddress: kp.Address(),
		AccountSeed:    kp.Seed(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// AttachVault records the vault key pair. A vault, once created, is never
// silently replaced.
func (b *Bridge) AttachVault(kp *keypair.Full) error {
	if b.VaultAddress != nil {
		return ErrVaultAlreadyAttached
	}
	address := kp.Address()
	seed := kp.Seed()
	b.VaultAddress = &address
	b.VaultSeed = &seed
	b.UpdatedAt = time.Now()
	return nil
}

// HasVault reports whether a vault account is attached.
func (b *Bridge) HasVault() bool {
	return b.VaultAddress != nil
}

// KeyPair reconstructs the primary account's signing key pair, verifying that
// the stored seed still reproduces the recorded public address.
func (b *Bridge) KeyPair() (*keypair.Full, error) {
	return parseVerified("bridge.KeyPair", b.AccountSeed, b.AccountAddress)
}

// VaultKeyPair reconstructs the vault account's signing key pair with the same
// integrity check as KeyPair.
func (b *Bridge) VaultKeyPair() (*keypair.Full, error) {
	if !b.HasVault() {
		return nil, ErrNoVaultAttached
	}
	return parseVerified("bridge.VaultKeyPair", *b.VaultSeed, *b.VaultAddress)
}

// IsVaultIssuer reports whether the given issuer address is this bridge's own
// vault. A tenant must never extend trust to its own vault.
func (b *Bridge) IsVaultIssuer(issuer string) bool {
	return b.VaultAddress != nil && *b.VaultAddress == issuer
}

func parseVerified(op, seed, address string) (*keypair.Full, error) {
	kp, err := keypair.ParseFull(seed)
	if err != nil {
		return nil, shared.NewIntegrityError(op, "stored seed is not a valid secret key")
	}
	if kp.Address() != address {
		return nil, shared.NewIntegrityError(op, "stored seed does not match recorded address "+address)
	}
	return kp, nil
}
