package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
)

type catalogRepository struct {
	q querier
}

func (r catalogRepository) GetProduct(ctx context.Context, id string) (*catalog.Product, error) {
	var p catalog.Product
	var offer decimal.NullDecimal
	err := r.q.QueryRowContext(ctx,
		"SELECT id, name, price, offer_price, inventory_count, active FROM products WHERE id = $1",
		id,
	).Scan(&p.ID, &p.Name, &p.Price, &offer, &p.InventoryCount, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", id, err)
	}
	if offer.Valid {
		p.OfferPrice = &offer.Decimal
	}
	return &p, nil
}

func (r catalogRepository) GetAddress(ctx context.Context, id string) (*catalog.Address, error) {
	var a catalog.Address
	err := r.q.QueryRowContext(ctx,
		`SELECT a.id, a.user_id, a.line, a.postal_code, c.id, c.name, c.shipment_fee, c.active
		FROM addresses a JOIN cities c ON c.id = a.city_id WHERE a.id = $1`,
		id,
	).Scan(&a.ID, &a.UserID, &a.Line, &a.PostalCode, &a.City.ID, &a.City.Name, &a.City.ShipmentFee, &a.City.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrAddressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load address %s: %w", id, err)
	}
	return &a, nil
}

func (r catalogRepository) GetCoupon(ctx context.Context, code string) (*catalog.Coupon, error) {
	var c catalog.Coupon
	err := r.q.QueryRowContext(ctx,
		"SELECT code, discount, valid_from, valid_to, active FROM coupons WHERE code = $1",
		code,
	).Scan(&c.Code, &c.Discount, &c.ValidFrom, &c.ValidTo, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon %s: %w", code, err)
	}
	return &c, nil
}
