package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/store"
)

// Store is an in-process implementation of store.Manager.
//
// Stock reservations are applied immediately under the data mutex and undone on
// rollback; order and payment writes are staged and become visible on commit.
// GetForUpdate takes a per-order lock held until the transaction ends.
type Store struct {
	mu        sync.Mutex
	products  map[string]*catalog.Product
	stock     map[string]*inventory.Item
	addresses map[string]*catalog.Address
	coupons   map[string]*catalog.Coupon
	orders    map[string]*order.Order
	payments  map[string]*payment.Payment // keyed by order id

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

var _ store.Manager = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		products:  make(map[string]*catalog.Product),
		stock:     make(map[string]*inventory.Item),
		addresses: make(map[string]*catalog.Address),
		coupons:   make(map[string]*catalog.Coupon),
		orders:    make(map[string]*order.Order),
		payments:  make(map[string]*payment.Payment),
		locks:     make(map[string]chan struct{}),
	}
}

// PutProduct seeds or replaces a product and its stock level.
func (s *Store) PutProduct(p catalog.Product) error {
	item, err := inventory.NewItem(p.ID, p.InventoryCount)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = &p
	s.stock[p.ID] = item
	return nil
}

func (s *Store) PutAddress(a catalog.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[a.ID] = &a
}

func (s *Store) PutCoupon(c catalog.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[c.Code] = &c
}

// Stock returns the committed inventory count for a product.
func (s *Store) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.stock[productID]; ok {
		return it.Quantity
	}
	return 0
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	t := &tx{
		s:        s,
		orders:   make(map[string]*order.Order),
		payments: make(map[string]*payment.Payment),
		held:     make(map[string]chan struct{}),
	}
	defer t.releaseLocks()
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, t); err != nil {
		t.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		t.rollback()
		return err
	}
	t.commit()
	return nil
}

func (s *Store) lockFor(id string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

type tx struct {
	s        *Store
	undo     []func()
	orders   map[string]*order.Order
	payments map[string]*payment.Payment
	held     map[string]chan struct{}
}

func (t *tx) Catalog() store.Catalog       { return catalogReader{t} }
func (t *tx) Inventory() inventory.Ledger  { return ledger{t} }
func (t *tx) Orders() order.Repository     { return orderRepo{t} }
func (t *tx) Payments() payment.Repository { return paymentRepo{t} }

func (t *tx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, o := range t.orders {
		t.s.orders[id] = o
	}
	for orderID, p := range t.payments {
		t.s.payments[orderID] = p
	}
}

func (t *tx) releaseLocks() {
	for id, l := range t.held {
		<-l
		delete(t.held, id)
	}
}

func (t *tx) lock(ctx context.Context, id string) error {
	if _, ok := t.held[id]; ok {
		return nil
	}
	l := t.s.lockFor(id)
	select {
	case l <- struct{}{}:
		t.held[id] = l
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type catalogReader struct{ t *tx }

func (c catalogReader) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	s := c.t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	clone := *p
	if it, ok := s.stock[id]; ok {
		clone.InventoryCount = it.Quantity
	}
	return &clone, nil
}

func (c catalogReader) GetAddress(ctx context.Context, id string) (*catalog.Address, error) {
	s := c.t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.addresses[id]
	if !ok {
		return nil, catalog.ErrAddressNotFound
	}
	clone := *a
	return &clone, nil
}

func (c catalogReader) GetCoupon(ctx context.Context, code string) (*catalog.Coupon, error) {
	s := c.t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.coupons[code]
	if !ok {
		return nil, catalog.ErrCouponNotFound
	}
	clone := *cp
	return &clone, nil
}

type ledger struct{ t *tx }

func (l ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}
	s := l.t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok || !p.Active {
		return inventory.ErrNotFound
	}
	item, ok := s.stock[productID]
	if !ok {
		return inventory.ErrNotFound
	}
	if err := item.Deduct(quantity); err != nil {
		return err
	}
	l.t.undo = append(l.t.undo, func() { _ = item.Restock(quantity) })
	return nil
}

func (l ledger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}
	s := l.t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.stock[productID]
	if !ok {
		return inventory.ErrNotFound
	}
	if err := item.Restock(quantity); err != nil {
		return err
	}
	l.t.undo = append(l.t.undo, func() { item.Quantity -= quantity })
	return nil
}

type orderRepo struct{ t *tx }

func (r orderRepo) Insert(ctx context.Context, o *order.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	if _, staged := r.t.orders[o.ID]; staged {
		return order.ErrConflict
	}
	s := r.t.s
	s.mu.Lock()
	_, exists := s.orders[o.ID]
	s.mu.Unlock()
	if exists {
		return order.ErrConflict
	}
	r.t.orders[o.ID] = o.Clone()
	return nil
}

func (r orderRepo) Get(ctx context.Context, id string) (*order.Order, error) {
	if o, ok := r.t.orders[id]; ok {
		return o.Clone(), nil
	}
	s := r.t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

func (r orderRepo) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	if err := r.t.lock(ctx, id); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r orderRepo) Update(ctx context.Context, o *order.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}
	if _, err := r.Get(ctx, o.ID); err != nil {
		return err
	}
	r.t.orders[o.ID] = o.Clone()
	return nil
}

func (r orderRepo) ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*order.Order, error) {
	s := r.t.s
	s.mu.Lock()
	out := make([]*order.Order, 0)
	for _, o := range s.orders {
		if o.IsUnpaid() && o.CreatedAt.Before(cutoff) {
			out = append(out, o.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type paymentRepo struct{ t *tx }

func (r paymentRepo) Insert(ctx context.Context, p *payment.Payment) error {
	if p == nil || p.OrderID == "" {
		return fmt.Errorf("payment repository: order id is required")
	}
	if _, err := r.FindByOrder(ctx, p.OrderID); err == nil {
		return payment.ErrAlreadyExists
	}
	clone := *p
	r.t.payments[p.OrderID] = &clone
	return nil
}

func (r paymentRepo) FindByOrder(ctx context.Context, orderID string) (*payment.Payment, error) {
	if p, ok := r.t.payments[orderID]; ok {
		clone := *p
		return &clone, nil
	}
	s := r.t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[orderID]
	if !ok {
		return nil, payment.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (r paymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return fmt.Errorf("payment repository: payment is required")
	}
	if _, err := r.FindByOrder(ctx, p.OrderID); err != nil {
		return err
	}
	clone := *p
	r.t.payments[p.OrderID] = &clone
	return nil
}
