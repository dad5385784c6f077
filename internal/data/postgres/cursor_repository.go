package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stellar-tenant-bridge/internal/domain/cursor"
	"github.com/stellar-tenant-bridge/internal/platform/persistence"
)

// CursorRepository implements the cursor.Repository interface for PostgreSQL
type CursorRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCursorRepository creates a new PostgreSQL cursor repository
func NewCursorRepository(logger *slog.Logger, db *persistence.PostgresDB) cursor.Repository {
	return &CursorRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *CursorRepository) WithTx(tx pgx.Tx) cursor.Repository {
	return &CursorRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// InsertOnce inserts the token if no row for it exists. ON CONFLICT DO NOTHING
// resolves the insertion race: the first writer wins and every later caller
// sees created=false, which makes the effect a duplicate to be skipped.
func (r *CursorRepository) InsertOnce(ctx context.Context, token string) (bool, error) {
	query := `
		INSERT INTO cursor_marks (token, processed, created_at)
		VALUES ($1, FALSE, $2)
		ON CONFLICT (token) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query, token, time.Now())
	if err != nil {
		r.logger.Error("Failed to insert cursor mark", "token", token, "error", err)
		return false, fmt.Errorf("failed to insert cursor mark: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// MarkProcessed flips the processed flag. The flag never goes back to false.
func (r *CursorRepository) MarkProcessed(ctx context.Context, token string) error {
	query := `
		UPDATE cursor_marks
		SET processed = TRUE
		WHERE token = $1
	`

	result, err := r.querier.Exec(ctx, query, token)
	if err != nil {
		r.logger.Error("Failed to mark cursor as processed", "token", token, "error", err)
		return fmt.Errorf("failed to mark cursor as processed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return cursor.ErrMarkNotFound{Token: token}
	}

	return nil
}

// LatestProcessed returns the resume point for stream consumption after a
// restart, or empty when no effect was ever processed.
func (r *CursorRepository) LatestProcessed(ctx context.Context) (string, error) {
	query := `
		SELECT token
		FROM cursor_marks
		WHERE processed = TRUE
		ORDER BY created_at DESC, token DESC
		LIMIT 1
	`

	var token string
	err := r.querier.QueryRow(ctx, query).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		r.logger.Error("Failed to get latest processed cursor", "error", err)
		return "", fmt.Errorf("failed to get latest processed cursor: %w", err)
	}

	return token, nil
}
