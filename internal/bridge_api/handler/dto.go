package handler

// CreateBridgeRequest represents a request to onboard a tenant
type CreateBridgeRequest struct {
	TenantID string `json:"tenant_id" binding:"required,uuid"`
}

// BridgeResponse represents a tenant bridge in API responses
type BridgeResponse struct {
	TenantID       string `json:"tenant_id"`
	AccountAddress string `json:"account_address"`
	VaultAddress   string `json:"vault_address,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// TrustlineRequest represents a request to establish or resize a trustline
type TrustlineRequest struct {
	AssetCode string `json:"asset_code" binding:"required,min=1,max=12"`
	Issuer    string `json:"issuer" binding:"required"`
	MaxTrust  string `json:"max_trust" binding:"required"`
}

// TrustlineResponse carries the limit the ledger actually holds, which may
// exceed the requested one when the account already held more
type TrustlineResponse struct {
	AssetCode      string `json:"asset_code"`
	Issuer         string `json:"issuer"`
	EffectiveLimit string `json:"effective_limit"`
}

// PaymentRequest represents a request to pay a target account. The target may
// carry a sub-account token after a colon
type PaymentRequest struct {
	Target    string `json:"target" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	AssetCode string `json:"asset_code" binding:"required,min=1,max=12"`
}

// FundVaultRequest represents a request to issue vault asset to the tenant
type FundVaultRequest struct {
	Amount    string `json:"amount" binding:"required"`
	AssetCode string `json:"asset_code" binding:"required,min=1,max=12"`
}

// PaymentResponse represents a submitted ledger transaction in API responses
type PaymentResponse struct {
	Hash string `json:"hash"`
}

// BalanceResponse represents one ledger balance in API responses
type BalanceResponse struct {
	AssetCode string `json:"asset_code,omitempty"`
	Issuer    string `json:"issuer,omitempty"`
	Native    bool   `json:"native"`
	Balance   string `json:"balance"`
	Limit     string `json:"limit,omitempty"`
}

// EffectResponse represents one journaled ledger effect in API responses
type EffectResponse struct {
	Cursor     string `json:"cursor"`
	Kind       string `json:"kind"`
	AssetCode  string `json:"asset_code,omitempty"`
	Issuer     string `json:"issuer,omitempty"`
	Native     bool   `json:"native"`
	Amount     string `json:"amount"`
	ObservedAt string `json:"observed_at"`
}

// OrphanResponse represents an account left behind by a failed removal
type OrphanResponse struct {
	ID           int64  `json:"id"`
	TenantID     string `json:"tenant_id"`
	Address      string `json:"address"`
	VaultAccount bool   `json:"vault_account"`
	Reason       string `json:"reason"`
	LastCursor   string `json:"last_cursor,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
