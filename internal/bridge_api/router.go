package bridge_api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stellar-tenant-bridge/internal/bridge_api/handler"
	"github.com/stellar-tenant-bridge/internal/bridge_api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	bridgeHandler *handler.BridgeHandler,
	paymentHandler *handler.PaymentHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Tenant bridge operations
		bridges := v1.Group("/bridges")
		{
			bridges.POST("", bridgeHandler.Create)
			bridges.DELETE("/:tenantId", bridgeHandler.Delete)
			bridges.POST("/:tenantId/vault", bridgeHandler.AttachVault)
			bridges.POST("/:tenantId/vault/funding", paymentHandler.FundVault)
			bridges.POST("/:tenantId/trustlines", paymentHandler.SetTrustline)
			bridges.POST("/:tenantId/payments", paymentHandler.Pay)
			bridges.GET("/:tenantId/balances", paymentHandler.GetBalances)
			bridges.GET("/:tenantId/effects", paymentHandler.GetEffects)
		}

		// Reconciliation
		v1.GET("/orphans", bridgeHandler.ListOrphans)
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
