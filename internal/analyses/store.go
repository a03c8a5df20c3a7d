package analyses

import "context"

// Store persists analysis records. Put overwrites the whole record keyed by ID,
// so repeating a Put is harmless.
type Store interface {
	Put(ctx context.Context, record Record) error
	ListByUser(ctx context.Context, userID string) ([]Record, error)
}
