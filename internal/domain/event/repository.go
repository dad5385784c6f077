package event

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages outbound event persistence. The retry counter is
// decremented and persisted before the side effect runs, so a crash
// mid-attempt never replays more than the budget allows.
type Repository interface {
	Create(ctx context.Context, event *OutboundEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*OutboundEvent, error)

	// GetDispatchable returns events with processed=false and retries_left>0
	// in FIFO order, for the periodic resend sweep.
	GetDispatchable(ctx context.Context, limit int) ([]*OutboundEvent, error)

	// DecrementRetries persists the consumption of one attempt and returns
	// the remaining count.
	DecrementRetries(ctx context.Context, id uuid.UUID) (remaining int, err error)

	// MarkProcessed sets processed=true and forces retries_left to 0.
	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// RecordFailure stores the captured error message of a failed attempt.
	RecordFailure(ctx context.Context, id uuid.UUID, message string) error

	// ExhaustRetries forces retries_left to 0 without marking the event
	// processed, for failures no retry can fix.
	ExhaustRetries(ctx context.Context, id uuid.UUID) error

	WithTx(tx pgx.Tx) Repository
}

// ErrEventNotFound indicates a missing outbound event
type ErrEventNotFound struct {
	ID uuid.UUID
}

func (e ErrEventNotFound) Error() string {
	return "outbound event not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrEventNotFound
func (e ErrEventNotFound) Is(target error) bool {
	t, ok := target.(ErrEventNotFound)
	if !ok {
		return false
	}
	if t.ID == uuid.Nil {
		return true
	}
	return e.ID == t.ID
}
