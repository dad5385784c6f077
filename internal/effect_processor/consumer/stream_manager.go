package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stellar-tenant-bridge/internal/domain/bridge"
	"github.com/stellar-tenant-bridge/internal/domain/cursor"
	"github.com/stellar-tenant-bridge/internal/stellar"
)

const (
	subscriptionRefreshInterval = 30 * time.Second
	streamRestartDelay          = 5 * time.Second
)

// StreamManager keeps one live effect subscription per bridge account. New
// bridges are picked up on the next refresh; subscriptions of deleted
// bridges are torn down. A failed stream restarts from the latest processed
// cursor after a short delay.
type StreamManager struct {
	bridges  bridge.Repository
	cursors  cursor.Repository
	streamer *stellar.EffectStreamer
	handler  *EffectHandler
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamManager wires the manager.
func NewStreamManager(
	logger *slog.Logger,
	bridges bridge.Repository,
	cursors cursor.Repository,
	streamer *stellar.EffectStreamer,
	handler *EffectHandler,
) *StreamManager {
	return &StreamManager{
		bridges:  bridges,
		cursors:  cursors,
		streamer: streamer,
		handler:  handler,
		logger:   logger,
		active:   make(map[string]context.CancelFunc),
	}
}

// Start reconciles subscriptions until the context is canceled, then waits
// for every stream goroutine to drain.
func (m *StreamManager) Start(ctx context.Context) {
	m.logger.Info("Starting effect stream manager",
		"refresh_interval", subscriptionRefreshInterval.String())

	ticker := time.NewTicker(subscriptionRefreshInterval)
	defer ticker.Stop()

	m.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Effect stream manager stopping")
			m.wg.Wait()
			return
		case <-ticker.C:
			m.reconcile(ctx)
		}
	}
}

func (m *StreamManager) reconcile(ctx context.Context) {
	addresses, err := m.bridges.ListAccountAddresses(ctx)
	if err != nil {
		m.logger.Error("Failed to list bridge accounts for streaming", "error", err)
		return
	}

	wanted := make(map[string]bool, len(addresses))
	for _, address := range addresses {
		wanted[address] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for address, cancel := range m.active {
		if !wanted[address] {
			m.logger.Info("Stopping effect stream for removed bridge account", "account", address)
			cancel()
			delete(m.active, address)
		}
	}

	for _, address := range addresses {
		if _, ok := m.active[address]; ok {
			continue
		}
		streamCtx, cancel := context.WithCancel(ctx)
		m.active[address] = cancel
		m.wg.Add(1)
		go m.streamLoop(streamCtx, address)
	}
}

// streamLoop keeps one account's subscription alive. Every (re)start resumes
// from the latest processed cursor; effects between that mark and the
// failure point are re-delivered and deduplicated by the cursor insert.
func (m *StreamManager) streamLoop(ctx context.Context, address string) {
	defer m.wg.Done()

	for {
		token, err := m.cursors.LatestProcessed(ctx)
		if err != nil {
			m.logger.Error("Failed to load latest processed cursor",
				"account", address,
				"error", err)
		} else {
			err = m.streamer.Stream(ctx, address, token, func(effect stellar.LedgerEffect) {
				_ = m.handler.HandleEffect(ctx, effect)
			})
			if err != nil {
				m.logger.Error("Effect stream failed, will restart",
					"account", address,
					"error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(streamRestartDelay):
		}
	}
}
