package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-checkout/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/store"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const (
	orderService      = "order-service"
	useCasePlaceOrder = "order.place"
)

// Pricing holds the checkout-wide money settings.
type Pricing struct {
	TaxRate  decimal.Decimal
	Currency string
}

type PlaceOrderInput struct {
	CustomerID        string
	CustomerName      string
	ProductIDs        []string
	Quantities        []int
	ShippingAddressID string
	CouponCode        string
	Gateway           string
}

type PlaceOrderResult struct {
	OrderID     string
	Total       decimal.Decimal
	AmountMinor int64
	Currency    string
	Gateway     string
	InvoiceURL  string
}

// PlaceOrderUseCase reserves stock, prices and persists an order, then asks the
// payment gateway for an invoice once the transaction has committed.
type PlaceOrderUseCase struct {
	store     store.Manager
	gateways  GatewayResolver
	ids       IDGenerator
	publisher domoutbox.Publisher
	pricing   Pricing
	now       func() time.Time
	obs       application.Instruments
}

func NewPlaceOrderUseCase(
	st store.Manager,
	gateways GatewayResolver,
	ids IDGenerator,
	publisher domoutbox.Publisher,
	pricing Pricing,
	tel observability.Observability,
) *PlaceOrderUseCase {
	return &PlaceOrderUseCase{
		store:     st,
		gateways:  gateways,
		ids:       ids,
		publisher: publisher,
		pricing:   pricing,
		now:       time.Now,
		obs:       application.NewInstruments(tel, orderService),
	}
}

func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	ctx, call := uc.obs.Start(ctx, useCasePlaceOrder, "PlaceOrder",
		attribute.String("order.customer_id", cmd.CustomerID),
		attribute.Int("order.line_count", len(cmd.ProductIDs)),
	)
	defer func() { call.End(err) }()

	if verr := validatePlaceOrder(cmd); verr != nil {
		call.Fail("VALIDATION_FAILED")
		return nil, verr
	}

	gw, gerr := uc.gateways.Get(cmd.Gateway)
	if gerr != nil {
		call.Fail("GATEWAY_UNKNOWN")
		return nil, &ValidationError{Field: "gateway", Reason: "unknown payment gateway", Err: gerr}
	}

	var placed *domain.Order
	err = uc.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, perr := uc.assemble(ctx, tx, cmd, gw.Name())
		if perr != nil {
			return perr
		}
		placed = o
		return nil
	})
	if err != nil {
		call.Fail(placeOrderStatus(err))
		return nil, err
	}

	call.Annotate(observability.F("order_id", placed.ID))
	call.Span().SetAttributes(
		attribute.String("order.id", placed.ID),
		attribute.String("order.total", placed.Total.StringFixed(2)),
	)
	call.Span().AddEvent("order.placed", trace.WithAttributes(attribute.String("order.id", placed.ID)))

	call.Publish(ctx, uc.publisher, domain.NewOrderPlacedEvent(placed))

	result := &PlaceOrderResult{
		OrderID:     placed.ID,
		Total:       placed.Total,
		AmountMinor: payment.ToMinor(placed.Total),
		Currency:    uc.pricing.Currency,
		Gateway:     gw.Name(),
	}

	inv, ierr := gw.RequestInvoice(ctx, payment.InvoiceRequest{
		OrderID:      placed.ID,
		AmountMinor:  result.AmountMinor,
		Currency:     uc.pricing.Currency,
		CustomerName: cmd.CustomerName,
	})
	if ierr != nil {
		// the order stays pending; the invoice can be requested again later
		call.Fail("INVOICE_UNAVAILABLE")
		call.Annotate(observability.F("invoice_error", ierr.Error()))
		return result, fmt.Errorf("%w: %w", ErrInvoiceUnavailable, ierr)
	}
	result.InvoiceURL = inv.URL

	if perr := attachInvoice(ctx, uc.store, placed.ID, inv); perr != nil {
		call.Annotate(observability.F("invoice_persist_error", perr.Error()))
		call.Logger().Warn("invoice_persist_failed",
			observability.F("order_id", placed.ID),
			observability.F("invoice_id", inv.InvoiceID),
			observability.F("error", perr),
		)
	}
	return result, nil
}

func (uc *PlaceOrderUseCase) assemble(ctx context.Context, tx store.Tx, cmd PlaceOrderInput, gateway string) (*domain.Order, error) {
	addr, err := tx.Catalog().GetAddress(ctx, cmd.ShippingAddressID)
	if errors.Is(err, catalog.ErrAddressNotFound) {
		return nil, &ValidationError{Field: "shipping_address_id", Reason: "address not found", Err: err}
	}
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	if addr.UserID != "" && addr.UserID != cmd.CustomerID {
		return nil, newValidation("shipping_address_id", "address does not belong to customer")
	}
	fee, err := addr.ShippingFee()
	if err != nil {
		return nil, &ValidationError{Field: "shipping_address_id", Reason: "city is not served", Err: err}
	}

	lines := make([]domain.Line, 0, len(cmd.ProductIDs))
	for i, productID := range cmd.ProductIDs {
		p, err := tx.Catalog().GetProduct(ctx, productID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		if err != nil {
			return nil, wrapRepositoryError(err)
		}
		if !p.Active {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}

		qty := cmd.Quantities[i]
		if err := tx.Inventory().Reserve(ctx, productID, qty); err != nil {
			if errors.Is(err, inventory.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
			}
			return nil, err
		}
		lines = append(lines, domain.Line{ProductID: productID, Quantity: qty, UnitPrice: p.EffectivePrice()})
	}

	var couponPct *decimal.Decimal
	if cmd.CouponCode != "" {
		c, err := tx.Catalog().GetCoupon(ctx, cmd.CouponCode)
		if errors.Is(err, catalog.ErrCouponNotFound) {
			return nil, &ValidationError{Field: "coupon_code", Reason: "coupon not found", Err: err}
		}
		if err != nil {
			return nil, wrapRepositoryError(err)
		}
		if !c.ValidAt(uc.now()) {
			return nil, &ValidationError{Field: "coupon_code", Reason: "coupon is not valid", Err: catalog.ErrCouponInvalid}
		}
		couponPct = &c.Discount
	}

	totals := domain.ComputeTotals(lines, fee, couponPct, uc.pricing.TaxRate)
	if !totals.Total.IsPositive() {
		// gateways cannot invoice a zero amount
		return nil, newValidation("total", "order total must be greater than zero")
	}
	o, err := domain.New(uc.ids.NewID(), cmd.CustomerID, addr.ID, lines, totals, cmd.CouponCode)
	if err != nil {
		return nil, fmt.Errorf("order: construct: %w", err)
	}
	if err := tx.Orders().Insert(ctx, o); err != nil {
		return nil, wrapRepositoryError(err)
	}
	if err := tx.Payments().Insert(ctx, payment.New(uc.ids.NewID(), o.ID, o.Total, gateway)); err != nil {
		return nil, wrapRepositoryError(err)
	}
	return o, nil
}

func validatePlaceOrder(cmd PlaceOrderInput) error {
	if strings.TrimSpace(cmd.CustomerID) == "" {
		return newValidation("customer_id", "customer id is required")
	}
	if len(cmd.ProductIDs) == 0 {
		return newValidation("products", "at least one product is required")
	}
	if len(cmd.ProductIDs) != len(cmd.Quantities) {
		return newValidation("quantities", "products and quantities must have the same length")
	}
	for i, q := range cmd.Quantities {
		if strings.TrimSpace(cmd.ProductIDs[i]) == "" {
			return newValidation("products", "product id is required")
		}
		if q < 1 {
			return newValidation("quantities", "quantity must be at least 1")
		}
	}
	if strings.TrimSpace(cmd.ShippingAddressID) == "" {
		return newValidation("shipping_address_id", "shipping address is required")
	}
	return nil
}

func placeOrderStatus(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return "VALIDATION_FAILED"
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "INSUFFICIENT_INVENTORY"
	case errors.Is(err, ErrProductNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CONTEXT_CANCELED"
	default:
		return "STORE_FAILED"
	}
}

// attachInvoice records the invoice on the order's payment unless one is already there.
// It holds the order lock so it cannot race reconciliation or cancellation.
func attachInvoice(ctx context.Context, st store.Manager, orderID string, inv *payment.Invoice) error {
	return st.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Orders().GetForUpdate(ctx, orderID); err != nil {
			return wrapRepositoryError(err)
		}
		p, err := tx.Payments().FindByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if p.HasInvoice() {
			return nil
		}
		p.AttachInvoice(inv)
		return tx.Payments().Update(ctx, p)
	})
}
