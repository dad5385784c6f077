// Package service provides the worker pool that executes event dispatches
// off the stream and consumer goroutines.
package service

import (
	"log/slog"

	"github.com/panjf2000/ants/v2"

	"github.com/stellar-tenant-bridge/internal/config"
)

// WorkerPool bounds the number of concurrent event dispatches. Stream
// handlers and the Kafka consumer hand work to the pool instead of spawning
// goroutines, so a burst of effects cannot exhaust the process.
type WorkerPool struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// NewWorkerPool creates a pool of the configured size.
func NewWorkerPool(logger *slog.Logger, cfg *config.WorkerPoolConfig) (*WorkerPool, error) {
	pool, err := ants.NewPool(cfg.Size)
	if err != nil {
		return nil, err
	}
	return &WorkerPool{pool: pool, logger: logger}, nil
}

// Submit schedules task on the pool. The error is the pool's own refusal
// (released or overloaded pool), never the task's outcome.
func (p *WorkerPool) Submit(task func()) error {
	err := p.pool.Submit(task)
	if err != nil {
		p.logger.Error("Failed to submit task to worker pool", "error", err)
	}
	return err
}

// Shutdown releases the pool. Running tasks finish; queued tasks are dropped.
func (p *WorkerPool) Shutdown() {
	p.logger.Info("Shutting down worker pool", "running_workers", p.pool.Running())
	p.pool.Release()
}

// Running returns the number of busy workers.
func (p *WorkerPool) Running() int {
	return p.pool.Running()
}

// Capacity returns the pool size.
func (p *WorkerPool) Capacity() int {
	return p.pool.Cap()
}
