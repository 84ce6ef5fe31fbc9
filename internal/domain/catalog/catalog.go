// Package catalog holds the read-side catalog entities the checkout flow depends on.
// Catalog management itself lives elsewhere; these types are only loaded and priced.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrAddressNotFound = errors.New("catalog: address not found")
	ErrCityInactive    = errors.New("catalog: city is not served")
	ErrCouponNotFound  = errors.New("catalog: coupon not found")
	ErrCouponInvalid   = errors.New("catalog: coupon is not valid")
)

type Product struct {
	ID             string
	Name           string
	Price          decimal.Decimal
	OfferPrice     *decimal.Decimal
	InventoryCount int
	Active         bool
}

// EffectivePrice is the offer price when one is set and positive, else the list price.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.OfferPrice != nil && p.OfferPrice.IsPositive() {
		return *p.OfferPrice
	}
	return p.Price
}

type City struct {
	ID          string
	Name        string
	ShipmentFee decimal.Decimal
	Active      bool
}

type Address struct {
	ID         string
	UserID     string
	Line       string
	PostalCode string
	City       City
}

// ShippingFee returns the fee for delivering to the address' city.
func (a *Address) ShippingFee() (decimal.Decimal, error) {
	if !a.City.Active {
		return decimal.Zero, ErrCityInactive
	}
	if a.City.ShipmentFee.IsNegative() {
		return decimal.Zero, ErrCityInactive
	}
	return a.City.ShipmentFee, nil
}

type Coupon struct {
	Code      string
	Discount  decimal.Decimal // percentage, 0-100
	ValidFrom time.Time
	ValidTo   time.Time
	Active    bool
}

// ValidAt reports whether the coupon can be redeemed at t.
func (c *Coupon) ValidAt(t time.Time) bool {
	if !c.Active {
		return false
	}
	if t.Before(c.ValidFrom) || t.After(c.ValidTo) {
		return false
	}
	return !c.Discount.IsNegative() && c.Discount.LessThanOrEqual(decimal.NewFromInt(100))
}

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}

type AddressReader interface {
	GetAddress(ctx context.Context, id string) (*Address, error)
}

type CouponReader interface {
	GetCoupon(ctx context.Context, code string) (*Coupon, error)
}
