package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stellar-tenant-bridge/internal/domain/journal"
)

const (
	// JournalCollectionName is the name of the effect journal collection in MongoDB
	JournalCollectionName = "effect_journal"
)

// JournalRepository implements the journal.Repository interface for MongoDB
type JournalRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewJournalRepository creates a new MongoDB effect journal repository
func NewJournalRepository(logger *slog.Logger, db *mongo.Database) journal.Repository {
	return &JournalRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends one observed effect to the journal. The cursor-mark table is
// the deduplication gate upstream, so the journal does its own insert blindly.
func (r *JournalRepository) Create(ctx context.Context, record *journal.Record) error {
	collection := r.db.Collection(JournalCollectionName)

	_, err := collection.InsertOne(ctx, record)
	if err != nil {
		r.logger.Error("Failed to create journal record",
			"cursor", record.Cursor,
			"account", record.Account,
			"error", err)
		return fmt.Errorf("failed to create journal record: %w", err)
	}

	return nil
}

// GetByAccount retrieves paginated journal records for a ledger account.
// Results are sorted by observation time in descending order (newest first).
func (r *JournalRepository) GetByAccount(ctx context.Context, account string, limit, offset int) ([]*journal.Record, error) {
	collection := r.db.Collection(JournalCollectionName)

	filter := bson.M{"account": account}
	opts := options.Find().
		SetSort(bson.D{{Key: "observed_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cur, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get journal records",
			"account", account,
			"error", err)
		return nil, fmt.Errorf("failed to get journal records: %w", err)
	}
	defer cur.Close(ctx)

	var records []*journal.Record
	if err := cur.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode journal records",
			"account", account,
			"error", err)
		return nil, fmt.Errorf("failed to decode journal records: %w", err)
	}

	return records, nil
}

// CountByAccount returns the number of journal records for a ledger account
func (r *JournalRepository) CountByAccount(ctx context.Context, account string) (int64, error) {
	collection := r.db.Collection(JournalCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"account": account})
	if err != nil {
		r.logger.Error("Failed to count journal records",
			"account", account,
			"error", err)
		return 0, fmt.Errorf("failed to count journal records: %w", err)
	}

	return count, nil
}
