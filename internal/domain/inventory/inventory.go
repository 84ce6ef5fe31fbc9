package inventory

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// InsufficientError reports which product could not cover the requested quantity.
type InsufficientError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %s (requested %d, available %d)",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientError) Unwrap() error { return ErrInsufficientStock }

type Item struct {
	ProductID string
	Quantity  int
	UpdatedAt time.Time
}

func NewItem(productID string, quantity int) (*Item, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Item{
		ProductID: productID,
		Quantity:  quantity,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Deduct removes quantity from the item or reports how much was available.
func (i *Item) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > i.Quantity {
		return &InsufficientError{ProductID: i.ProductID, Requested: quantity, Available: i.Quantity}
	}
	i.Quantity -= quantity
	i.touch()
	return nil
}

func (i *Item) Restock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	i.Quantity += quantity
	i.touch()
	return nil
}

func (i *Item) touch() {
	i.UpdatedAt = time.Now().UTC()
}
