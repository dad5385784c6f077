package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-tenant-bridge/internal/domain/event"
)

func TestEventRepository_DecrementRetries(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &EventRepository{querier: mock, logger: logger}
	eventID := uuid.New()

	query := `
		UPDATE outbound_events
		SET retries_left = retries_left - 1, updated_at = \$1
		WHERE id = \$2 AND retries_left > 0
		RETURNING retries_left
	`

	t.Run("consumes one attempt", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"retries_left"}).AddRow(2)
		mock.ExpectQuery(query).WithArgs(pgxmock.AnyArg(), eventID).WillReturnRows(rows)

		remaining, err := repo.DecrementRetries(ctx, eventID)
		assert.NoError(t, err)
		assert.Equal(t, 2, remaining)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exhausted budget leaves no row to update", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(pgxmock.AnyArg(), eventID).WillReturnError(pgx.ErrNoRows)

		_, err := repo.DecrementRetries(ctx, eventID)
		assert.Error(t, err)
		var notFoundErr event.ErrEventNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEventRepository_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &EventRepository{querier: mock, logger: logger}
	eventID := uuid.New()

	query := `
		UPDATE outbound_events
		SET processed = TRUE, retries_left = 0, last_error = '', updated_at = \$1
		WHERE id = \$2
	`

	mock.ExpectExec(query).
		WithArgs(pgxmock.AnyArg(), eventID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.MarkProcessed(ctx, eventID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_ExhaustRetries(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &EventRepository{querier: mock, logger: logger}
	eventID := uuid.New()

	query := `
		UPDATE outbound_events
		SET retries_left = 0, updated_at = \$1
		WHERE id = \$2
	`

	mock.ExpectExec(query).
		WithArgs(pgxmock.AnyArg(), eventID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.ExhaustRetries(ctx, eventID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
