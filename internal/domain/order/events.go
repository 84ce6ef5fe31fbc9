package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlacedEvent is emitted after an order and its reservations are committed.
type OrderPlacedEvent struct {
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Total      decimal.Decimal `json:"total"`
	Lines      []PlacedLine    `json:"lines"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type PlacedLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (OrderPlacedEvent) EventName() string      { return "order.placed" }
func (e OrderPlacedEvent) AggregateKey() string { return e.OrderID }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	lines := make([]PlacedLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, PlacedLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return OrderPlacedEvent{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Total:      o.Total,
		Lines:      lines,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCanceledEvent is emitted when a pending order is canceled and its stock released.
type OrderCanceledEvent struct {
	OrderID    string    `json:"order_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (OrderCanceledEvent) EventName() string      { return "order.canceled" }
func (e OrderCanceledEvent) AggregateKey() string { return e.OrderID }

func NewOrderCanceledEvent(o *Order, reason string) OrderCanceledEvent {
	return OrderCanceledEvent{
		OrderID:    o.ID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
