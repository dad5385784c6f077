package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/stellar-tenant-bridge/internal/config"
	"github.com/stellar-tenant-bridge/internal/data/mongo"
	"github.com/stellar-tenant-bridge/internal/data/postgres"
	"github.com/stellar-tenant-bridge/internal/domain/event"
	"github.com/stellar-tenant-bridge/internal/effect_processor/components"
	"github.com/stellar-tenant-bridge/internal/effect_processor/consumer"
	"github.com/stellar-tenant-bridge/internal/effect_processor/dispatcher"
	"github.com/stellar-tenant-bridge/internal/effect_processor/keylock"
	"github.com/stellar-tenant-bridge/internal/effect_processor/resend_poller"
	"github.com/stellar-tenant-bridge/internal/effect_processor/service"
	"github.com/stellar-tenant-bridge/internal/logger"
	"github.com/stellar-tenant-bridge/internal/platform/messaging/consumers"
	"github.com/stellar-tenant-bridge/internal/platform/messaging/producers"
	"github.com/stellar-tenant-bridge/internal/platform/persistence"
	"github.com/stellar-tenant-bridge/internal/stellar"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("effect_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Effect Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize the ledger gateway and its collaborators
	horizonClient := stellar.NewHorizonClient(&cfg.Stellar)
	gateway, err := stellar.NewGateway(log, horizonClient, &cfg.Stellar)
	if err != nil {
		log.Error("Failed to initialize ledger gateway", "error", err)
		os.Exit(1)
	}
	finder := stellar.NewPathFinder(log, horizonClient)
	router := stellar.NewPaymentRouter(log, gateway, finder)
	vaults := stellar.NewVaultManager(log, horizonClient, gateway)
	streamer := stellar.NewEffectStreamer(log, horizonClient)

	// Initialize repositories
	bridgeRepo := postgres.NewBridgeRepository(log, postgresDB)
	cursorRepo := postgres.NewCursorRepository(log, postgresDB)
	eventRepo := postgres.NewEventRepository(log, postgresDB)
	journalRepo := mongo.NewJournalRepository(log, mongoDB.Database())

	// Initialize Kafka producers and consumer
	notifier, err := producers.NewCoreNotificationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize notification Kafka producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize the dispatcher with one executor per event kind
	locks := keylock.New()
	disp := dispatcher.NewDispatcher(log, eventRepo, locks)
	disp.Register(event.KindLedgerPayment, components.NewPaymentExecutor(log, bridgeRepo, router))
	disp.Register(event.KindOfferAdjustment, components.NewOfferExecutor(log, bridgeRepo, vaults))
	disp.Register(event.KindCoreNotification, components.NewNotificationExecutor(log, notifier))

	// Initialize the worker pool
	pool, err := service.NewWorkerPool(log, &cfg.WorkerPool)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize consumers and the resend poller
	effectHandler := consumer.NewEffectHandler(log, &cfg.Events, postgresDB, bridgeRepo, cursorRepo, eventRepo, journalRepo, disp, pool)
	streamManager := consumer.NewStreamManager(log, bridgeRepo, cursorRepo, streamer, effectHandler)
	commandHandler := consumer.NewCommandHandler(log, &cfg.Events, eventRepo, disp, pool, dlqProducer)
	poller := resend_poller.NewPoller(&cfg.Events, eventRepo, disp, pool, log)

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.CommandTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.CommandTopic, cfg.Kafka.ConsumerGroup, commandHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Start the effect stream manager in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		streamManager.Start(appCtx)
	}()

	// Start resend poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shut down the worker pool after the producers of work stopped
	log.Info("Shutting down worker pool", "running_workers", pool.Running())
	pool.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka producers and consumer
	if err = notifier.Close(); err != nil {
		log.Error("Error closing notification Kafka producer", "error", err)
	}
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Effect Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Effect Processor shutdown completed with errors")
	} else {
		log.Info("Effect Processor shutdown completed successfully")
	}
}
