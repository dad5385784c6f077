package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stellar-tenant-bridge/internal/domain/event"
	"github.com/stellar-tenant-bridge/internal/platform/persistence"
)

// EventRepository implements the event.Repository interface for PostgreSQL
type EventRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewEventRepository creates a new PostgreSQL outbound event repository
func NewEventRepository(logger *slog.Logger, db *persistence.PostgresDB) event.Repository {
	return &EventRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *EventRepository) WithTx(tx pgx.Tx) event.Repository {
	return &EventRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new outbound event with its full retry budget
func (r *EventRepository) Create(ctx context.Context, e *event.OutboundEvent) error {
	query := `
		INSERT INTO outbound_events (id, kind, lock_key, payload, processed, retries_left, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		e.ID,
		e.Kind,
		e.LockKey,
		e.Payload,
		e.Processed,
		e.RetriesLeft,
		e.LastError,
		e.CreatedAt,
		e.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create outbound event",
			"event_id", e.ID.String(),
			"kind", string(e.Kind),
			"error", err,
		)
		return fmt.Errorf("failed to create outbound event: %w", err)
	}

	return nil
}

// GetByID retrieves one outbound event.
// Returns ErrEventNotFound if the event doesn't exist.
func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*event.OutboundEvent, error) {
	query := `
		SELECT id, kind, lock_key, payload, processed, retries_left, last_error, created_at, updated_at
		FROM outbound_events
		WHERE id = $1
	`

	var e event.OutboundEvent
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.Kind,
		&e.LockKey,
		&e.Payload,
		&e.Processed,
		&e.RetriesLeft,
		&e.LastError,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, event.ErrEventNotFound{ID: id}
		}
		r.logger.Error("Failed to get outbound event", "event_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get outbound event: %w", err)
	}

	return &e, nil
}

// GetDispatchable retrieves a batch of unprocessed events that still have
// retries, ordered by creation time. Used by the resend sweep.
func (r *EventRepository) GetDispatchable(ctx context.Context, limit int) ([]*event.OutboundEvent, error) {
	query := `
		SELECT id, kind, lock_key, payload, processed, retries_left, last_error, created_at, updated_at
		FROM outbound_events
		WHERE processed = FALSE AND retries_left > 0
		ORDER BY created_at ASC
		LIMIT $1
	`

	rows, err := r.querier.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to get dispatchable outbound events", "error", err)
		return nil, fmt.Errorf("failed to get dispatchable outbound events: %w", err)
	}
	defer rows.Close()

	var events []*event.OutboundEvent
	for rows.Next() {
		var e event.OutboundEvent
		err := rows.Scan(
			&e.ID,
			&e.Kind,
			&e.LockKey,
			&e.Payload,
			&e.Processed,
			&e.RetriesLeft,
			&e.LastError,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan outbound event", "error", err)
			return nil, fmt.Errorf("failed to scan outbound event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over outbound events", "error", err)
		return nil, fmt.Errorf("error iterating over outbound events: %w", err)
	}

	return events, nil
}

// DecrementRetries consumes one attempt and persists it immediately, before
// the side effect runs, so a crash mid-attempt cannot exceed the budget.
func (r *EventRepository) DecrementRetries(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE outbound_events
		SET retries_left = retries_left - 1, updated_at = $1
		WHERE id = $2 AND retries_left > 0
		RETURNING retries_left
	`

	var remaining int
	err := r.querier.QueryRow(ctx, query, time.Now(), id).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, event.ErrEventNotFound{ID: id}
		}
		r.logger.Error("Failed to decrement outbound event retries", "event_id", id.String(), "error", err)
		return 0, fmt.Errorf("failed to decrement outbound event retries: %w", err)
	}

	return remaining, nil
}

// MarkProcessed finalizes a successful attempt
func (r *EventRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbound_events
		SET processed = TRUE, retries_left = 0, last_error = '', updated_at = $1
		WHERE id = $2
	`

	return r.exec(ctx, query, id, "mark outbound event processed", time.Now(), id)
}

// RecordFailure stores the captured error message of a failed attempt
func (r *EventRepository) RecordFailure(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE outbound_events
		SET last_error = $1, updated_at = $2
		WHERE id = $3
	`

	return r.exec(ctx, query, id, "record outbound event failure", message, time.Now(), id)
}

// ExhaustRetries zeroes the budget of an event no retry can fix
func (r *EventRepository) ExhaustRetries(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbound_events
		SET retries_left = 0, updated_at = $1
		WHERE id = $2
	`

	return r.exec(ctx, query, id, "exhaust outbound event retries", time.Now(), id)
}

func (r *EventRepository) exec(ctx context.Context, query string, id uuid.UUID, action string, args ...interface{}) error {
	result, err := r.querier.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+action, "event_id", id.String(), "error", err)
		return fmt.Errorf("failed to %s: %w", action, err)
	}

	if result.RowsAffected() == 0 {
		return event.ErrEventNotFound{ID: id}
	}

	return nil
}
