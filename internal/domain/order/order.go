package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already exists")
	ErrInvalidQuantity        = errors.New("order: quantity must be greater than zero")
	ErrInvalidAmount          = errors.New("order: amount must be zero or greater")
	ErrNoLines                = errors.New("order: at least one line is required")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
	ErrTerminal               = errors.New("order: order is canceled")
)

// PaymentStatus is the payment-facing status of an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCanceled  PaymentStatus = "canceled"
)

type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Ready     bool
}

func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID                string
	CustomerID        string
	Lines             []Line
	Subtotal          decimal.Decimal
	Discount          decimal.Decimal
	ShippingFee       decimal.Decimal
	Tax               decimal.Decimal
	Total             decimal.Decimal
	PaymentStatus     PaymentStatus
	Paid              bool
	Received          bool
	ReceivedAt        *time.Time
	Packaged          bool
	PackagedAt        *time.Time
	Delivered         bool
	DeliveredAt       *time.Time
	ShippingAddressID string
	CouponCode        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func New(id, customerID, shippingAddressID string, lines []Line, totals Totals, couponCode string) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	if totals.Total.IsNegative() {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	return &Order{
		ID:                id,
		CustomerID:        customerID,
		Lines:             lines,
		Subtotal:          totals.Subtotal,
		Discount:          totals.Discount,
		ShippingFee:       totals.Shipping,
		Tax:               totals.Tax,
		Total:             totals.Total,
		PaymentStatus:     PaymentPending,
		ShippingAddressID: shippingAddressID,
		CouponCode:        couponCode,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// MarkPaid moves the order to completed. Calling it on a completed order is a no-op.
func (o *Order) MarkPaid() error {
	next, err := o.State().OnPaymentSucceeded(o)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

// MarkPaymentFailed records a failed payment. A completed order stays completed.
func (o *Order) MarkPaymentFailed() error {
	next, err := o.State().OnPaymentFailed(o)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

func (o *Order) Cancel() error {
	next, err := o.State().OnCanceled(o)
	if err != nil {
		return err
	}
	o.apply(next)
	return nil
}

func (o *Order) MarkReceived(at time.Time) {
	if o.Received {
		return
	}
	o.Received = true
	o.ReceivedAt = &at
	o.touch()
}

func (o *Order) MarkPackaged(at time.Time) {
	if o.Packaged {
		return
	}
	o.Packaged = true
	o.PackagedAt = &at
	o.touch()
}

func (o *Order) MarkDelivered(at time.Time) {
	if o.Delivered {
		return
	}
	o.Delivered = true
	o.DeliveredAt = &at
	o.touch()
}

func (o *Order) IsPending() bool { return o.PaymentStatus == PaymentPending }

// IsUnpaid reports whether the order still holds stock without a settled payment.
func (o *Order) IsUnpaid() bool {
	return o.PaymentStatus == PaymentPending || o.PaymentStatus == PaymentFailed
}

// Clone returns a deep copy safe to hand across repository boundaries.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]Line(nil), o.Lines...)
	c.ReceivedAt = cloneTime(o.ReceivedAt)
	c.PackagedAt = cloneTime(o.PackagedAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (o *Order) apply(next OrderState) {
	if next.Status() == o.PaymentStatus {
		return
	}
	o.PaymentStatus = next.Status()
	o.touch()
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
