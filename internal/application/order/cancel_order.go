package order

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/store"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const useCaseCancelOrder = "order.cancel"

// ErrOrderSettled is returned when a cancellation requires an unpaid order.
var ErrOrderSettled = errors.New("order: order is already settled")

type CancelOrderInput struct {
	OrderID string
	Reason  string
	// RequireUnpaid refuses orders that are no longer pending or failed.
	RequireUnpaid bool
}

type CancelOrderResult struct {
	OrderID         string
	PaymentStatus   domain.PaymentStatus
	AlreadyCanceled bool
	ReleasedUnits   int
}

// CancelOrderUseCase cancels an unpaid order and returns its reserved stock,
// all under the order's row lock.
type CancelOrderUseCase struct {
	store     store.Manager
	publisher domoutbox.Publisher
	obs       application.Instruments
}

func NewCancelOrderUseCase(st store.Manager, publisher domoutbox.Publisher, tel observability.Observability) *CancelOrderUseCase {
	return &CancelOrderUseCase{
		store:     st,
		publisher: publisher,
		obs:       application.NewInstruments(tel, orderService),
	}
}

func (uc *CancelOrderUseCase) Execute(ctx context.Context, cmd CancelOrderInput) (_ *CancelOrderResult, err error) {
	ctx, call := uc.obs.Start(ctx, useCaseCancelOrder, "CancelOrder",
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { call.End(err) }()

	if cmd.OrderID == "" {
		call.Fail("ORDER_ID_REQUIRED")
		return nil, newValidation("order_id", "order id is required")
	}
	reason := cmd.Reason
	if reason == "" {
		reason = "customer_request"
	}

	result := &CancelOrderResult{OrderID: cmd.OrderID}
	var canceled *domain.Order
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, lerr := tx.Orders().GetForUpdate(ctx, cmd.OrderID)
		if lerr != nil {
			return wrapRepositoryError(lerr)
		}
		if o.PaymentStatus == domain.PaymentCanceled {
			result.AlreadyCanceled = true
			result.PaymentStatus = o.PaymentStatus
			return nil
		}
		if cmd.RequireUnpaid && !o.IsUnpaid() {
			return fmt.Errorf("%w: payment status is %s", ErrOrderSettled, o.PaymentStatus)
		}
		if cerr := o.Cancel(); cerr != nil {
			return cerr
		}

		for _, l := range o.Lines {
			if rerr := tx.Inventory().Release(ctx, l.ProductID, l.Quantity); rerr != nil {
				return fmt.Errorf("order: release %s: %w", l.ProductID, rerr)
			}
			result.ReleasedUnits += l.Quantity
		}

		p, perr := tx.Payments().FindByOrder(ctx, o.ID)
		switch {
		case errors.Is(perr, payment.ErrNotFound):
		case perr != nil:
			return perr
		case p.Status == payment.StatusPending:
			p.Fail("", "")
			if uerr := tx.Payments().Update(ctx, p); uerr != nil {
				return uerr
			}
		}

		if uerr := tx.Orders().Update(ctx, o); uerr != nil {
			return wrapRepositoryError(uerr)
		}
		result.PaymentStatus = o.PaymentStatus
		canceled = o
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			call.Fail("ORDER_NOT_FOUND")
		case errors.Is(err, ErrInvalidStateTransition):
			call.Fail("ORDER_ALREADY_PAID")
		case errors.Is(err, ErrOrderSettled):
			call.Fail("ORDER_SETTLED")
		default:
			call.Fail("STORE_FAILED")
		}
		return nil, err
	}

	if result.AlreadyCanceled {
		call.Status("ALREADY_CANCELED")
		return result, nil
	}

	call.Annotate(
		observability.F("reason", reason),
		observability.F("released_units", result.ReleasedUnits),
	)
	call.Publish(ctx, uc.publisher, domain.NewOrderCanceledEvent(canceled, reason))
	return result, nil
}
