package inventory

import (
	"context"
)

// Ledger moves stock in and out. Implementations are bound to a store transaction,
// so a rollback undoes every reservation made through them.
type Ledger interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
}
