package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stellar-tenant-bridge/internal/bridge_api/service"
	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/domain/shared"
)

// BridgeHandler handles HTTP requests for tenant onboarding and offboarding
type BridgeHandler struct {
	bridgeService service.BridgeService
	logger        *slog.Logger
}

// NewBridgeHandler creates a new bridge handler
func NewBridgeHandler(logger *slog.Logger, bridgeService service.BridgeService) *BridgeHandler {
	return &BridgeHandler{
		bridgeService: bridgeService,
		logger:        logger,
	}
}

// Create handles onboarding of a tenant, creating its funded ledger account
func (h *BridgeHandler) Create(c *gin.Context) {
	var req CreateBridgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		RespondBadRequest(c, "Invalid tenant ID")
		return
	}

	b, err := h.bridgeService.CreateBridge(c.Request.Context(), tenantID)
	if err != nil {
		var duplicateErr bridge.ErrDuplicateBridge
		if errors.As(err, &duplicateErr) {
			RespondConflict(c, "Bridge already exists for this tenant")
			return
		}
		h.respondError(c, "Failed to create bridge", err)
		return
	}

	RespondCreated(c, mapBridgeToResponse(b))
}

// AttachVault handles creation of the tenant's asset-issuing vault account
func (h *BridgeHandler) AttachVault(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}

	b, err := h.bridgeService.AttachVault(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, bridge.ErrVaultAlreadyAttached) {
			RespondConflict(c, "Vault already attached to this tenant")
			return
		}
		h.respondError(c, "Failed to attach vault", err)
		return
	}

	RespondCreated(c, mapBridgeToResponse(b))
}

// Delete handles offboarding of a tenant, removing its ledger accounts
func (h *BridgeHandler) Delete(c *gin.Context) {
	tenantID, ok := tenantIDParam(c)
	if !ok {
		return
	}

	if err := h.bridgeService.DeleteBridge(c.Request.Context(), tenantID); err != nil {
		h.respondError(c, "Failed to delete bridge", err)
		return
	}

	RespondNoContent(c)
}

// ListOrphans returns every ledger account a failed removal left behind
func (h *BridgeHandler) ListOrphans(c *gin.Context) {
	orphans, err := h.bridgeService.ListOrphans(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to list orphaned accounts", err)
		return
	}

	responses := make([]OrphanResponse, 0, len(orphans))
	for _, o := range orphans {
		responses = append(responses, OrphanResponse{
			ID:           o.ID,
			TenantID:     o.TenantID.String(),
			Address:      o.Address,
			VaultAccount: o.VaultAccount,
			Reason:       o.Reason,
			LastCursor:   o.LastCursor,
			CreatedAt:    o.CreatedAt.Format(time.RFC3339),
		})
	}
	RespondOK(c, responses)
}

func (h *BridgeHandler) respondError(c *gin.Context, msg string, err error) {
	respondDomainError(c, h.logger, msg, err)
}

// respondDomainError maps domain errors onto HTTP statuses: a missing bridge
// is 404, a rejected or unroutable request is 400, a ledger-side operation
// failure is 502, and anything else stays an opaque 500.
func respondDomainError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	if errors.Is(err, bridge.ErrBridgeNotFound{}) {
		RespondNotFound(c, "Bridge not found")
		return
	}

	var bridgeErr *shared.BridgeError
	if errors.As(err, &bridgeErr) {
		switch bridgeErr.Kind {
		case shared.FailureRouting:
			RespondBadRequest(c, bridgeErr.Diagnostic)
			return
		case shared.FailureAccountCreation, shared.FailureTrustline, shared.FailurePayment, shared.FailureOffer:
			logger.Warn(msg, "kind", string(bridgeErr.Kind), "error", err)
			RespondBadGateway(c, "LEDGER_REJECTED", bridgeErr.Error())
			return
		}
	}

	logger.Error(msg, "error", err)
	RespondInternalError(c)
}

func tenantIDParam(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("tenantId")
	tenantID, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid tenant ID")
		return uuid.Nil, false
	}
	return tenantID, true
}

// mapBridgeToResponse maps a bridge entity to a bridge response DTO
func mapBridgeToResponse(b *bridge.Bridge) BridgeResponse {
	resp := BridgeResponse{
		TenantID:       b.TenantID.String(),
		AccountAddress: b.AccountAddress,
		CreatedAt:      b.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      b.UpdatedAt.Format(time.RFC3339),
	}
	if b.VaultAddress != nil {
		resp.VaultAddress = *b.VaultAddress
	}
	return resp
}
