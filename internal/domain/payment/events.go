package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompletedEvent is emitted when a payment transitions to completed.
type CompletedEvent struct {
	OrderID       string          `json:"order_id"`
	Gateway       string          `json:"gateway"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func (CompletedEvent) EventName() string      { return "payment.completed" }
func (e CompletedEvent) AggregateKey() string { return e.OrderID }

func NewCompletedEvent(p *Payment) CompletedEvent {
	return CompletedEvent{
		OrderID:       p.OrderID,
		Gateway:       p.Gateway,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		OccurredAt:    time.Now().UTC(),
	}
}

// FailedEvent is emitted when a pending payment is reported as failed.
type FailedEvent struct {
	OrderID       string    `json:"order_id"`
	Gateway       string    `json:"gateway"`
	TransactionID string    `json:"transaction_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (FailedEvent) EventName() string      { return "payment.failed" }
func (e FailedEvent) AggregateKey() string { return e.OrderID }

func NewFailedEvent(p *Payment) FailedEvent {
	return FailedEvent{
		OrderID:       p.OrderID,
		Gateway:       p.Gateway,
		TransactionID: p.TransactionID,
		OccurredAt:    time.Now().UTC(),
	}
}
