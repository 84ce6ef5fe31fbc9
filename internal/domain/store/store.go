// Package store defines the transactional unit of work shared by the checkout use cases.
package store

import (
	"context"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Catalog() Catalog
	Inventory() inventory.Ledger
	Orders() order.Repository
	Payments() payment.Repository
}

type Catalog interface {
	catalog.ProductReader
	catalog.AddressReader
	catalog.CouponReader
}

// Manager runs fn inside a transaction. The transaction commits when fn returns nil
// and rolls back otherwise; locks taken through Tx are released when it ends.
type Manager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
