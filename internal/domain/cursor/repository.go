package cursor

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository manages cursor mark persistence. InsertOnce is the sole
// deduplication point of the stream: the insertion race is resolved by "first
// writer wins, return the existing row".
type Repository interface {
	// InsertOnce inserts the token if it has never been seen. It returns
	// created=false when a row for the token already existed.
	InsertOnce(ctx context.Context, token string) (created bool, err error)

	// MarkProcessed flips processed to true. The transition is one-way.
	MarkProcessed(ctx context.Context, token string) error

	// LatestProcessed returns the most recent processed token, or empty when
	// none exists (consumption then starts from "now").
	LatestProcessed(ctx context.Context) (string, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrMarkNotFound indicates a missing cursor mark
type ErrMarkNotFound struct {
	Token string
}

func (e ErrMarkNotFound) Error() string {
	return "cursor mark not found: " + e.Token
}
