package payment

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domorder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/store"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const (
	paymentService   = "payment-service"
	useCaseReconcile = "payment.reconcile"
)

type ReconcileResult struct {
	OrderID       string
	Outcome       Outcome
	OrderStatus   domorder.PaymentStatus
	PaymentStatus dompay.Status
}

// ReconcileUseCase applies a canonical gateway event to the order and its payment
// while holding the order's lock. Replays of the same event change nothing.
type ReconcileUseCase struct {
	store     store.Manager
	ids       IDGenerator
	publisher domoutbox.Publisher
	obs       application.Instruments
}

func NewReconcileUseCase(st store.Manager, ids IDGenerator, publisher domoutbox.Publisher, tel observability.Observability) *ReconcileUseCase {
	return &ReconcileUseCase{
		store:     st,
		ids:       ids,
		publisher: publisher,
		obs:       application.NewInstruments(tel, paymentService),
	}
}

func (uc *ReconcileUseCase) Execute(ctx context.Context, ev dompay.CanonicalEvent) (_ *ReconcileResult, err error) {
	ctx, call := uc.obs.Start(ctx, useCaseReconcile, "Reconcile",
		attribute.String("order.id", ev.OrderID),
		attribute.String("payment.gateway", ev.Gateway),
		attribute.String("payment.event_status", string(ev.Status)),
		attribute.String("payment.channel", string(ev.ReceivedVia)),
	)
	defer func() { call.End(err) }()

	result := &ReconcileResult{OrderID: ev.OrderID}
	if ev.OrderID == "" {
		result.Outcome = OutcomeOrderNotFound
		call.Fail("ORDER_ID_MISSING")
		return result, ErrOrderNotFound
	}

	var publish domoutbox.Event
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, lerr := tx.Orders().GetForUpdate(ctx, ev.OrderID)
		if errors.Is(lerr, domorder.ErrNotFound) {
			return ErrOrderNotFound
		}
		if lerr != nil {
			return lerr
		}

		p, lerr := tx.Payments().FindByOrder(ctx, o.ID)
		switch {
		case errors.Is(lerr, dompay.ErrNotFound):
			amount := ev.Amount
			if amount.IsZero() {
				amount = o.Total
			}
			p = dompay.New(uc.ids.NewID(), o.ID, amount, ev.Gateway)
			p.TransactionID = ev.GatewayTransactionID
			if ierr := tx.Payments().Insert(ctx, p); ierr != nil {
				return ierr
			}
		case lerr != nil:
			return lerr
		}

		if o.PaymentStatus == domorder.PaymentCanceled {
			result.Outcome = OutcomeOrderTerminal
		} else {
			outcome, aerr := uc.apply(call, o, p, ev)
			if aerr != nil {
				return aerr
			}
			result.Outcome = outcome
		}
		result.OrderStatus, result.PaymentStatus = o.PaymentStatus, p.Status

		if result.Outcome != OutcomeApplied {
			return nil
		}
		if uerr := tx.Payments().Update(ctx, p); uerr != nil {
			return uerr
		}
		if uerr := tx.Orders().Update(ctx, o); uerr != nil {
			return uerr
		}
		if p.Status == dompay.StatusCompleted {
			publish = dompay.NewCompletedEvent(p)
		} else {
			publish = dompay.NewFailedEvent(p)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			result.Outcome = OutcomeOrderNotFound
			call.Fail("ORDER_NOT_FOUND")
			return result, err
		}
		call.Fail("STORE_FAILED")
		return nil, err
	}

	call.Status(statusFor(result.Outcome))
	call.Annotate(
		observability.F("order_id", ev.OrderID),
		observability.F("gateway", ev.Gateway),
		observability.F("event_status", string(ev.Status)),
		observability.F("reconcile_outcome", string(result.Outcome)),
	)
	if result.Outcome == OutcomeOrderTerminal && ev.Status != dompay.EventPending {
		call.Logger().Warn("payment_event_for_canceled_order",
			observability.F("order_id", ev.OrderID),
			observability.F("gateway", ev.Gateway),
			observability.F("event_status", string(ev.Status)),
			observability.F("transaction_id", ev.GatewayTransactionID),
		)
	}

	call.Publish(ctx, uc.publisher, publish)
	return result, nil
}

// apply mutates o and p in memory; the caller persists them when the outcome is applied.
func (uc *ReconcileUseCase) apply(call *application.Call, o *domorder.Order, p *dompay.Payment, ev dompay.CanonicalEvent) (Outcome, error) {
	switch ev.Status {
	case dompay.EventPaid:
		if p.Status == dompay.StatusCompleted && o.PaymentStatus == domorder.PaymentCompleted {
			return OutcomeDuplicate, nil
		}
		if !ev.Amount.IsZero() && !ev.Amount.Equal(o.Total) {
			call.Logger().Warn("payment_amount_mismatch",
				observability.F("order_id", o.ID),
				observability.F("order_total", o.Total.StringFixed(2)),
				observability.F("paid_amount", ev.Amount.StringFixed(2)),
			)
		}
		if err := o.MarkPaid(); err != nil {
			return "", fmt.Errorf("payment: mark order paid: %w", err)
		}
		p.Complete(ev.GatewayTransactionID, ev.GatewayInvoiceID)
		return OutcomeApplied, nil

	case dompay.EventFailed:
		if p.Status == dompay.StatusCompleted || o.PaymentStatus == domorder.PaymentCompleted {
			return OutcomeIgnoredPaidSticky, nil
		}
		if p.Status == dompay.StatusFailed && o.PaymentStatus == domorder.PaymentFailed {
			return OutcomeDuplicate, nil
		}
		if err := o.MarkPaymentFailed(); err != nil {
			return "", fmt.Errorf("payment: mark order failed: %w", err)
		}
		p.Fail(ev.GatewayTransactionID, ev.GatewayInvoiceID)
		return OutcomeApplied, nil

	default:
		return OutcomeNoop, nil
	}
}

func statusFor(o Outcome) string {
	switch o {
	case OutcomeApplied:
		return "OK"
	case OutcomeDuplicate:
		return "DUPLICATE"
	case OutcomeIgnoredPaidSticky:
		return "PAID_STICKY"
	case OutcomeOrderTerminal:
		return "ORDER_TERMINAL"
	default:
		return "NOOP"
	}
}
