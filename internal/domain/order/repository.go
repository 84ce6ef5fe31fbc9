package order

import (
	"context"
	"time"
)

type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// GetForUpdate loads the order and holds its lock until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	// ListUnpaidBefore returns pending or failed orders created before cutoff, oldest first.
	ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Order, error)
}
