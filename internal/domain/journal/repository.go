package journal

import "context"

// Repository manages effect journal persistence
type Repository interface {
	Create(ctx context.Context, record *Record) error
	GetByAccount(ctx context.Context, account string, limit, offset int) ([]*Record, error)
	CountByAccount(ctx context.Context, account string) (int64, error)
}
