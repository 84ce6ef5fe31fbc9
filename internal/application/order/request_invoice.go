package order

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/store"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const useCaseRequestInvoice = "order.request_invoice"

type RequestInvoiceInput struct {
	OrderID      string
	CustomerName string
}

type RequestInvoiceResult struct {
	OrderID     string
	Gateway     string
	InvoiceID   string
	InvoiceURL  string
	AmountMinor int64
	// Reused is true when a stored invoice was returned without calling the gateway.
	Reused bool
}

// RequestInvoiceUseCase (re)issues the payment invoice for a pending order.
// It is idempotent: once an invoice is stored it is returned as-is.
type RequestInvoiceUseCase struct {
	store    store.Manager
	gateways GatewayResolver
	ids      IDGenerator
	pricing  Pricing
	obs      application.Instruments
}

func NewRequestInvoiceUseCase(
	st store.Manager,
	gateways GatewayResolver,
	ids IDGenerator,
	pricing Pricing,
	tel observability.Observability,
) *RequestInvoiceUseCase {
	return &RequestInvoiceUseCase{
		store:    st,
		gateways: gateways,
		ids:      ids,
		pricing:  pricing,
		obs:      application.NewInstruments(tel, orderService),
	}
}

func (uc *RequestInvoiceUseCase) Execute(ctx context.Context, cmd RequestInvoiceInput) (_ *RequestInvoiceResult, err error) {
	ctx, call := uc.obs.Start(ctx, useCaseRequestInvoice, "RequestInvoice",
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { call.End(err) }()

	if cmd.OrderID == "" {
		call.Fail("ORDER_ID_REQUIRED")
		return nil, newValidation("order_id", "order id is required")
	}

	var (
		o *domain.Order
		p *payment.Payment
	)
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var lerr error
		if o, lerr = tx.Orders().Get(ctx, cmd.OrderID); lerr != nil {
			return wrapRepositoryError(lerr)
		}
		p, lerr = tx.Payments().FindByOrder(ctx, cmd.OrderID)
		if errors.Is(lerr, payment.ErrNotFound) {
			p = nil
			return nil
		}
		return lerr
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			call.Fail("ORDER_NOT_FOUND")
		} else {
			call.Fail("STORE_FAILED")
		}
		return nil, err
	}

	if !o.IsPending() {
		call.Fail("ORDER_NOT_PAYABLE")
		return nil, fmt.Errorf("%w: payment status is %s", ErrOrderNotPayable, o.PaymentStatus)
	}

	result := &RequestInvoiceResult{OrderID: o.ID, AmountMinor: payment.ToMinor(o.Total)}
	if p != nil && p.HasInvoice() {
		call.Status("INVOICE_REUSED")
		result.Gateway, result.InvoiceID, result.InvoiceURL, result.Reused = p.Gateway, p.InvoiceID, p.InvoiceURL, true
		return result, nil
	}

	gatewayName := ""
	if p != nil {
		gatewayName = p.Gateway
	}
	gw, gerr := uc.gateways.Get(gatewayName)
	if gerr != nil {
		call.Fail("GATEWAY_UNKNOWN")
		return nil, gerr
	}

	inv, ierr := gw.RequestInvoice(ctx, payment.InvoiceRequest{
		OrderID:      o.ID,
		AmountMinor:  result.AmountMinor,
		Currency:     uc.pricing.Currency,
		CustomerName: cmd.CustomerName,
	})
	if ierr != nil {
		call.Fail("INVOICE_UNAVAILABLE")
		return nil, fmt.Errorf("%w: %w", ErrInvoiceUnavailable, ierr)
	}

	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		current, lerr := tx.Orders().GetForUpdate(ctx, o.ID)
		if lerr != nil {
			return wrapRepositoryError(lerr)
		}
		stored, lerr := tx.Payments().FindByOrder(ctx, o.ID)
		if errors.Is(lerr, payment.ErrNotFound) {
			stored = payment.New(uc.ids.NewID(), o.ID, current.Total, gw.Name())
			stored.AttachInvoice(inv)
			return tx.Payments().Insert(ctx, stored)
		}
		if lerr != nil {
			return lerr
		}
		if stored.HasInvoice() {
			// a concurrent request won; keep its invoice
			inv = &payment.Invoice{Gateway: stored.Gateway, InvoiceID: stored.InvoiceID, URL: stored.InvoiceURL}
			return nil
		}
		stored.AttachInvoice(inv)
		return tx.Payments().Update(ctx, stored)
	})
	if err != nil {
		call.Fail("INVOICE_PERSIST_FAILED")
		return nil, err
	}

	call.Annotate(observability.F("gateway", inv.Gateway))
	result.Gateway, result.InvoiceID, result.InvoiceURL = inv.Gateway, inv.InvoiceID, inv.URL
	return result, nil
}
