package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stellar-tenant-bridge/internal/bridge_api"
	"github.com/stellar-tenant-bridge/internal/bridge_api/service"
	"github.com/stellar-tenant-bridge/internal/config"
	"github.com/stellar-tenant-bridge/internal/data/mongo"
	"github.com/stellar-tenant-bridge/internal/data/postgres"
	"github.com/stellar-tenant-bridge/internal/logger"
	"github.com/stellar-tenant-bridge/internal/platform/persistence"
	"github.com/stellar-tenant-bridge/internal/stellar"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("bridge_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize the ledger gateway
	horizonClient := stellar.NewHorizonClient(&cfg.Stellar)
	gateway, err := stellar.NewGateway(log, horizonClient, &cfg.Stellar)
	if err != nil {
		log.Error("Failed to initialize ledger gateway", "error", err)
		os.Exit(1)
	}
	finder := stellar.NewPathFinder(log, horizonClient)
	router := stellar.NewPaymentRouter(log, gateway, finder)

	// Initialize repositories
	bridgeRepo := postgres.NewBridgeRepository(log, postgresDB)
	orphanRepo := postgres.NewOrphanRepository(log, postgresDB)
	cursorRepo := postgres.NewCursorRepository(log, postgresDB)
	journalRepo := mongo.NewJournalRepository(log, mongoDB.Database())

	// Initialize services
	bridgeService := service.NewBridgeService(log, bridgeRepo, orphanRepo, cursorRepo, gateway)
	paymentService := service.NewPaymentService(log, bridgeRepo, journalRepo, gateway, router)

	// Initialize REST server
	server := bridge_api.NewServer(log, cfg, bridgeService, paymentService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
