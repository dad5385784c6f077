package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/stellar-tenant-bridge/internal/bridge_api/service"
	"github.com/stellar-tenant-bridge/internal/domain/bridge"
)

// PaymentHandler handles HTTP requests for trustlines, payments, vault
// funding, balances, and the effect journal
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// SetTrustline establishes or resizes the tenant's trustline for an asset
func (h *PaymentHandler) SetTrustline(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}

	var req TrustlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	maxTrust, ok := parsePositiveAmount(c, req.MaxTrust)
	if !ok {
		return
	}

	effective, err := h.paymentService.SetTrustline(c.Request.Context(), tenantID, req.AssetCode, req.Issuer, maxTrust)
	if err != nil {
		respondDomainError(c, h.logger, "Failed to set trustline", err)
		return
	}

	RespondOK(c, TrustlineResponse{
		AssetCode:      req.AssetCode,
		Issuer:         req.Issuer,
		EffectiveLimit: effective.String(),
	})
}

// Pay submits a payment from the tenant's primary account
func (h *PaymentHandler) Pay(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}

	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, ok := parsePositiveAmount(c, req.Amount)
	if !ok {
		return
	}

	hash, err := h.paymentService.Pay(c.Request.Context(), tenantID, req.Target, amount, req.AssetCode)
	if err != nil {
		respondDomainError(c, h.logger, "Failed to submit payment", err)
		return
	}

	RespondOK(c, PaymentResponse{Hash: hash})
}

// FundVault issues vault asset into the tenant's primary account
func (h *PaymentHandler) FundVault(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}

	var req FundVaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, ok := parsePositiveAmount(c, req.Amount)
	if !ok {
		return
	}

	hash, err := h.paymentService.FundVault(c.Request.Context(), tenantID, amount, req.AssetCode)
	if err != nil {
		if errors.Is(err, bridge.ErrNoVaultAttached) {
			RespondConflict(c, "Tenant has no vault account")
			return
		}
		respondDomainError(c, h.logger, "Failed to fund vault", err)
		return
	}

	RespondOK(c, PaymentResponse{Hash: hash})
}

// GetBalances returns the ledger balances of the tenant's primary account
func (h *PaymentHandler) GetBalances(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}

	balances, err := h.paymentService.GetBalances(c.Request.Context(), tenantID)
	if err != nil {
		respondDomainError(c, h.logger, "Failed to get balances", err)
		return
	}

	responses := make([]BalanceResponse, 0, len(balances))
	for _, b := range balances {
		responses = append(responses, BalanceResponse{
			AssetCode: b.Asset.Code,
			Issuer:    b.Asset.Issuer,
			Native:    b.Asset.Type == "native",
			Balance:   b.Balance,
			Limit:     b.Limit,
		})
	}
	RespondOK(c, responses)
}

// GetEffects returns a page of journaled ledger effects for the tenant
func (h *PaymentHandler) GetEffects(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	records, total, err := h.paymentService.GetEffects(c.Request.Context(), tenantID, params.Page, params.PerPage)
	if err != nil {
		respondDomainError(c, h.logger, "Failed to get effects", err)
		return
	}

	responses := make([]EffectResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, EffectResponse{
			Cursor:     r.Cursor,
			Kind:       string(r.Kind),
			AssetCode:  r.AssetCode,
			Issuer:     r.Issuer,
			Native:     r.Native,
			Amount:     r.Amount.String(),
			ObservedAt: r.ObservedAt.Format(time.RFC3339),
		})
	}
	RespondWithPaginatedData(c, http.StatusOK, responses, params.Page, params.PerPage, int(total))
}

func parsePositiveAmount(c *gin.Context, raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		RespondBadRequest(c, "Invalid amount: "+raw)
		return decimal.Zero, false
	}
	if !amount.IsPositive() {
		RespondBadRequest(c, "Amount must be greater than zero")
		return decimal.Zero, false
	}
	return amount, true
}
