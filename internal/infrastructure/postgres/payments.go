package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

type paymentRepository struct {
	q querier
}

func (r paymentRepository) Insert(ctx context.Context, p *payment.Payment) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO payments (id, order_id, amount, gateway, status, transaction_id, invoice_id, invoice_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.OrderID, p.Amount, p.Gateway, string(p.Status), p.TransactionID, p.InvoiceID, p.InvoiceURL, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return payment.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (r paymentRepository) FindByOrder(ctx context.Context, orderID string) (*payment.Payment, error) {
	var p payment.Payment
	var status string
	err := r.q.QueryRowContext(ctx,
		`SELECT id, order_id, amount, gateway, status, transaction_id, invoice_id, invoice_url, created_at, updated_at
		FROM payments WHERE order_id = $1`,
		orderID,
	).Scan(&p.ID, &p.OrderID, &p.Amount, &p.Gateway, &status, &p.TransactionID, &p.InvoiceID, &p.InvoiceURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, payment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment for order %s: %w", orderID, err)
	}
	p.Status = payment.Status(status)
	return &p, nil
}

func (r paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE payments SET amount = $2, gateway = $3, status = $4, transaction_id = $5,
			invoice_id = $6, invoice_url = $7, updated_at = $8
		WHERE order_id = $1`,
		p.OrderID, p.Amount, p.Gateway, string(p.Status), p.TransactionID, p.InvoiceID, p.InvoiceURL, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return payment.ErrNotFound
	}
	return nil
}
