package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar-tenant-bridge/internal/domain/cursor"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestCursorRepository_InsertOnce(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CursorRepository{querier: mock, logger: logger}

	query := `
		INSERT INTO cursor_marks \(token, processed, created_at\)
		VALUES \(\$1, FALSE, \$2\)
		ON CONFLICT \(token\) DO NOTHING
	`

	t.Run("first writer wins", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("1234-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		created, err := repo.InsertOnce(ctx, "1234-1")
		assert.NoError(t, err)
		assert.True(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate token reports existing row", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("1234-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		created, err := repo.InsertOnce(ctx, "1234-1")
		assert.NoError(t, err)
		assert.False(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		mock.ExpectExec(query).
			WithArgs("1234-1", pgxmock.AnyArg()).
			WillReturnError(dbErr)

		_, err := repo.InsertOnce(ctx, "1234-1")
		assert.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCursorRepository_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CursorRepository{querier: mock, logger: logger}

	query := `
		UPDATE cursor_marks
		SET processed = TRUE
		WHERE token = \$1
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("1234-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.MarkProcessed(ctx, "1234-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing mark", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("missing").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkProcessed(ctx, "missing")
		assert.Error(t, err)
		var notFoundErr cursor.ErrMarkNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, "missing", notFoundErr.Token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCursorRepository_LatestProcessed(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &CursorRepository{querier: mock, logger: logger}

	query := `
		SELECT token
		FROM cursor_marks
		WHERE processed = TRUE
		ORDER BY created_at DESC, token DESC
		LIMIT 1
	`

	t.Run("returns resume point", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"token"}).AddRow("9981-3")
		mock.ExpectQuery(query).WillReturnRows(rows)

		token, err := repo.LatestProcessed(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "9981-3", token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty when nothing processed yet", func(t *testing.T) {
		mock.ExpectQuery(query).WillReturnError(pgx.ErrNoRows)

		token, err := repo.LatestProcessed(ctx)
		assert.NoError(t, err)
		assert.Empty(t, token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
