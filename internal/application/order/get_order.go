package order

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/store"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const useCaseGetOrder = "order.get"

type GetOrderInput struct {
	OrderID string
}

// OrderView is an order together with its payment, if one was recorded.
type OrderView struct {
	Order   *domain.Order
	Payment *payment.Payment
}

type GetOrderUseCase struct {
	store store.Manager
	obs   application.Instruments
}

func NewGetOrderUseCase(st store.Manager, tel observability.Observability) *GetOrderUseCase {
	return &GetOrderUseCase{store: st, obs: application.NewInstruments(tel, orderService)}
}

func (uc *GetOrderUseCase) Execute(ctx context.Context, q GetOrderInput) (_ *OrderView, err error) {
	ctx, call := uc.obs.Start(ctx, useCaseGetOrder, "GetOrder",
		attribute.String("order.id", q.OrderID),
	)
	defer func() { call.End(err) }()

	if q.OrderID == "" {
		call.Fail("ORDER_ID_REQUIRED")
		return nil, newValidation("order_id", "order id is required")
	}

	view := &OrderView{}
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, lerr := tx.Orders().Get(ctx, q.OrderID)
		if lerr != nil {
			return wrapRepositoryError(lerr)
		}
		view.Order = o
		p, lerr := tx.Payments().FindByOrder(ctx, q.OrderID)
		if errors.Is(lerr, payment.ErrNotFound) {
			return nil
		}
		if lerr != nil {
			return lerr
		}
		view.Payment = p
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			call.Fail("ORDER_NOT_FOUND")
		} else {
			call.Fail("STORE_FAILED")
		}
		return nil, err
	}
	return view, nil
}
