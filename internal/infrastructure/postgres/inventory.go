package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
)

type ledger struct {
	q querier
}

// Reserve decrements stock only when enough is available, so concurrent
// reservations can never drive the count negative.
func (l ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}
	res, err := l.q.ExecContext(ctx,
		"UPDATE products SET inventory_count = inventory_count - $1 WHERE id = $2 AND active AND inventory_count >= $1",
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	if n == 1 {
		return nil
	}

	var available int
	var active bool
	err = l.q.QueryRowContext(ctx,
		"SELECT inventory_count, active FROM products WHERE id = $1",
		productID,
	).Scan(&available, &active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
		return inventory.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read stock: %w", err)
	}
	return &inventory.InsufficientError{ProductID: productID, Requested: quantity, Available: available}
}

func (l ledger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}
	res, err := l.q.ExecContext(ctx,
		"UPDATE products SET inventory_count = inventory_count + $1 WHERE id = $2",
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return inventory.ErrNotFound
	}
	return nil
}
