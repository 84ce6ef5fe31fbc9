package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
)

const orderColumns = `id, customer_id, subtotal, discount, shipping_fee, tax, total,
	payment_status, paid, received, received_at, packaged, packaged_at, delivered, delivered_at,
	shipping_address_id, coupon_code, created_at, updated_at`

type orderRepository struct {
	q querier
}

func (r orderRepository) Insert(ctx context.Context, o *order.Order) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		o.ID, o.CustomerID, o.Subtotal, o.Discount, o.ShippingFee, o.Tax, o.Total,
		string(o.PaymentStatus), o.Paid, o.Received, nullTime(o.ReceivedAt), o.Packaged, nullTime(o.PackagedAt),
		o.Delivered, nullTime(o.DeliveredAt), o.ShippingAddressID, o.CouponCode, o.CreatedAt, o.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return order.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, l := range o.Lines {
		_, err = r.q.ExecContext(ctx,
			"INSERT INTO order_lines (order_id, product_id, quantity, unit_price, ready) VALUES ($1, $2, $3, $4, $5)",
			o.ID, l.ProductID, l.Quantity, l.UnitPrice, l.Ready,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}
	return nil
}

func (r orderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, "")
}

func (r orderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r orderRepository) get(ctx context.Context, id, lock string) (*order.Order, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1"+lock, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}
	if o.Lines, err = r.lines(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

func (r orderRepository) Update(ctx context.Context, o *order.Order) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE orders SET payment_status = $2, paid = $3,
			received = $4, received_at = $5, packaged = $6, packaged_at = $7,
			delivered = $8, delivered_at = $9, updated_at = $10
		WHERE id = $1`,
		o.ID, string(o.PaymentStatus), o.Paid,
		o.Received, nullTime(o.ReceivedAt), o.Packaged, nullTime(o.PackagedAt),
		o.Delivered, nullTime(o.DeliveredAt), o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r orderRepository) ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]*order.Order, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE payment_status IN ($1, $2) AND created_at < $3 ORDER BY created_at LIMIT $4",
		string(order.PaymentPending), string(order.PaymentFailed), cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpaid orders: %w", err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

func (r orderRepository) lines(ctx context.Context, orderID string) ([]order.Line, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT product_id, quantity, unit_price, ready FROM order_lines WHERE order_id = $1 ORDER BY id",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []order.Line
	for rows.Next() {
		var l order.Line
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice, &l.Ready); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var status string
	var receivedAt, packagedAt, deliveredAt sql.NullTime
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.Subtotal, &o.Discount, &o.ShippingFee, &o.Tax, &o.Total,
		&status, &o.Paid, &o.Received, &receivedAt, &o.Packaged, &packagedAt, &o.Delivered, &deliveredAt,
		&o.ShippingAddressID, &o.CouponCode, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentStatus = order.PaymentStatus(status)
	o.ReceivedAt = timePtr(receivedAt)
	o.PackagedAt = timePtr(packagedAt)
	o.DeliveredAt = timePtr(deliveredAt)
	return &o, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
