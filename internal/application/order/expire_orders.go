package order

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/store"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const (
	useCaseExpireOrders = "order.expire_pending"
	defaultExpiryBatch  = 100
	expiryReason        = "payment_timeout"
)

type ExpirePendingOrdersInput struct {
	Now time.Time
}

type ExpirePendingOrdersResult struct {
	Scanned int
	Expired int
	Skipped int
	Failed  int
}

// ExpirePendingOrdersUseCase cancels orders that stayed unpaid for longer than the TTL
// and returns their stock. Failed orders are swept too: a retry after a failed
// payment is a new checkout, so nothing else would release them.
type ExpirePendingOrdersUseCase struct {
	store  store.Manager
	cancel application.UseCase[CancelOrderInput, *CancelOrderResult]
	ttl    time.Duration
	batch  int
	obs    application.Instruments
}

func NewExpirePendingOrdersUseCase(
	st store.Manager,
	cancel application.UseCase[CancelOrderInput, *CancelOrderResult],
	ttl time.Duration,
	tel observability.Observability,
) *ExpirePendingOrdersUseCase {
	return &ExpirePendingOrdersUseCase{
		store:  st,
		cancel: cancel,
		ttl:    ttl,
		batch:  defaultExpiryBatch,
		obs:    application.NewInstruments(tel, orderService),
	}
}

func (uc *ExpirePendingOrdersUseCase) Execute(ctx context.Context, cmd ExpirePendingOrdersInput) (_ *ExpirePendingOrdersResult, err error) {
	ctx, call := uc.obs.Start(ctx, useCaseExpireOrders, "ExpirePendingOrders",
		attribute.String("order.ttl", uc.ttl.String()),
	)
	defer func() { call.End(err) }()

	now := cmd.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.Add(-uc.ttl)

	var stale []*domain.Order
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var lerr error
		stale, lerr = tx.Orders().ListUnpaidBefore(ctx, cutoff, uc.batch)
		return lerr
	})
	if err != nil {
		call.Fail("STORE_FAILED")
		return nil, err
	}

	result := &ExpirePendingOrdersResult{Scanned: len(stale)}
	for _, o := range stale {
		if cerr := ctx.Err(); cerr != nil {
			call.Fail("CONTEXT_CANCELED")
			return result, cerr
		}
		_, cerr := uc.cancel.Execute(ctx, CancelOrderInput{OrderID: o.ID, Reason: expiryReason, RequireUnpaid: true})
		switch {
		case cerr == nil:
			result.Expired++
		case errors.Is(cerr, ErrOrderSettled), errors.Is(cerr, ErrInvalidStateTransition):
			// paid between listing and locking
			result.Skipped++
		default:
			result.Failed++
			call.Logger().Warn("order_expiry_failed",
				observability.F("order_id", o.ID),
				observability.F("error", cerr),
			)
		}
	}

	call.Annotate(
		observability.F("scanned", result.Scanned),
		observability.F("expired", result.Expired),
		observability.F("skipped", result.Skipped),
		observability.F("failed", result.Failed),
	)
	if result.Failed > 0 {
		call.Status("PARTIAL_FAILURE")
	}
	return result, nil
}
