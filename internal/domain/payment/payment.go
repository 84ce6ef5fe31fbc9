package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound      = errors.New("payment: not found")
	ErrAlreadyExists = errors.New("payment: already exists for order")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Payment is the single payment record attached to an order.
type Payment struct {
	ID            string
	OrderID       string
	Amount        decimal.Decimal
	Gateway       string
	Status        Status
	TransactionID string
	InvoiceID     string
	InvoiceURL    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func New(id, orderID string, amount decimal.Decimal, gateway string) *Payment {
	now := time.Now().UTC()
	return &Payment{
		ID:        id,
		OrderID:   orderID,
		Amount:    amount,
		Gateway:   gateway,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (p *Payment) HasInvoice() bool { return p.InvoiceURL != "" }

func (p *Payment) AttachInvoice(inv *Invoice) {
	p.InvoiceID = inv.InvoiceID
	p.InvoiceURL = inv.URL
	if inv.Gateway != "" {
		p.Gateway = inv.Gateway
	}
	p.touch()
}

// Complete marks the payment as paid and records the gateway references it arrived with.
func (p *Payment) Complete(transactionID, invoiceID string) {
	p.Status = StatusCompleted
	p.setRefs(transactionID, invoiceID)
	p.touch()
}

func (p *Payment) Fail(transactionID, invoiceID string) {
	p.Status = StatusFailed
	p.setRefs(transactionID, invoiceID)
	p.touch()
}

func (p *Payment) setRefs(transactionID, invoiceID string) {
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	if invoiceID != "" {
		p.InvoiceID = invoiceID
	}
}

func (p *Payment) touch() {
	p.UpdatedAt = time.Now().UTC()
}

type Repository interface {
	Insert(ctx context.Context, p *Payment) error
	FindByOrder(ctx context.Context, orderID string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
}
