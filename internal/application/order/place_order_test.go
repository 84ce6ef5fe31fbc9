package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/store"
)

func TestPlaceOrderPricesAndReserves(t *testing.T) {
	f := newFixture(t, 5, 5)

	res, err := f.placeOrder().Execute(context.Background(), basicInput())
	require.NoError(t, err)

	assert.Equal(t, "45.45", res.Total.StringFixed(2))
	assert.Equal(t, int64(4545), res.AmountMinor)
	assert.Equal(t, "EGP", res.Currency)
	assert.Equal(t, "myfatoorah", res.Gateway)
	assert.Equal(t, "https://pay.example/"+res.OrderID, res.InvoiceURL)
	assert.Equal(t, 3, f.store.Stock("A"))
	assert.Equal(t, 4, f.store.Stock("B"))

	require.Len(t, f.gateway.requests, 1)
	assert.Equal(t, int64(4545), f.gateway.requests[0].AmountMinor)
	assert.Equal(t, "Mona Adel", f.gateway.requests[0].CustomerName)
	assert.Equal(t, []string{"order.placed"}, f.publisher.names())

	view, err := NewGetOrderUseCase(f.store, nil).Execute(context.Background(), GetOrderInput{OrderID: res.OrderID})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, view.Order.PaymentStatus)
	assert.Equal(t, "0.45", view.Order.Tax.StringFixed(2))
	require.NotNil(t, view.Payment)
	assert.Equal(t, payment.StatusPending, view.Payment.Status)
	assert.Equal(t, "inv-"+res.OrderID, view.Payment.InvoiceID)
}

func TestPlaceOrderInsufficientStockRollsBackEverything(t *testing.T) {
	f := newFixture(t, 5, 0)

	res, err := f.placeOrder().Execute(context.Background(), basicInput())
	require.Error(t, err)
	assert.Nil(t, res)

	var ie *inventory.InsufficientError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "B", ie.ProductID)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)

	assert.Equal(t, 5, f.store.Stock("A"), "reservation of A must be undone")
	assert.Equal(t, 0, f.gateway.calls())
	assert.Empty(t, f.publisher.names())
}

func TestPlaceOrderInvoiceFailureLeavesOrderPending(t *testing.T) {
	f := newFixture(t, 5, 5)
	f.gateway.err = &payment.GatewayError{Gateway: "myfatoorah", Kind: payment.KindTransport, Detail: "dial tcp: refused"}

	res, err := f.placeOrder().Execute(context.Background(), basicInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvoiceUnavailable)
	var gerr *payment.GatewayError
	assert.True(t, errors.As(err, &gerr))

	require.NotNil(t, res)
	assert.Empty(t, res.InvoiceURL)
	assert.Equal(t, 3, f.store.Stock("A"))

	view, err := NewGetOrderUseCase(f.store, nil).Execute(context.Background(), GetOrderInput{OrderID: res.OrderID})
	require.NoError(t, err)
	assert.True(t, view.Order.IsPending())
	assert.False(t, view.Payment.HasInvoice())
}

func TestPlaceOrderAppliesCoupon(t *testing.T) {
	f := newFixture(t, 200, 5)
	f.store.PutCoupon(catalog.Coupon{
		Code:      "SAVE10",
		Discount:  decimal.NewFromInt(10),
		ValidFrom: time.Now().Add(-time.Hour),
		ValidTo:   time.Now().Add(time.Hour),
		Active:    true,
	})
	in := PlaceOrderInput{
		CustomerID:        "cust-1",
		ProductIDs:        []string{"A"},
		Quantities:        []int{10},
		ShippingAddressID: "addr-1",
		CouponCode:        "SAVE10",
	}

	res, err := f.placeOrder().Execute(context.Background(), in)
	require.NoError(t, err)
	// 100 - 10 + 20 = 110, tax 1.10
	assert.Equal(t, "111.10", res.Total.StringFixed(2))
}

func TestPlaceOrderRejectsExpiredCoupon(t *testing.T) {
	f := newFixture(t, 5, 5)
	f.store.PutCoupon(catalog.Coupon{
		Code:      "OLD",
		Discount:  decimal.NewFromInt(10),
		ValidFrom: time.Now().Add(-48 * time.Hour),
		ValidTo:   time.Now().Add(-24 * time.Hour),
		Active:    true,
	})
	in := basicInput()
	in.CouponCode = "OLD"

	_, err := f.placeOrder().Execute(context.Background(), in)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "coupon_code", verr.Field)
	assert.Equal(t, 5, f.store.Stock("A"))
}

func TestPlaceOrderValidation(t *testing.T) {
	cases := map[string]func(in *PlaceOrderInput){
		"no customer":     func(in *PlaceOrderInput) { in.CustomerID = "" },
		"no products":     func(in *PlaceOrderInput) { in.ProductIDs, in.Quantities = nil, nil },
		"length mismatch": func(in *PlaceOrderInput) { in.Quantities = []int{1} },
		"zero quantity":   func(in *PlaceOrderInput) { in.Quantities = []int{0, 1} },
		"no address":      func(in *PlaceOrderInput) { in.ShippingAddressID = "" },
		"unknown address": func(in *PlaceOrderInput) { in.ShippingAddressID = "nope" },
		"foreign address": func(in *PlaceOrderInput) { in.CustomerID = "cust-2" },
		"unknown gateway": func(in *PlaceOrderInput) { in.Gateway = "stripe" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 5, 5)
			in := basicInput()
			mutate(&in)

			_, err := f.placeOrder().Execute(context.Background(), in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, 5, f.store.Stock("A"))
		})
	}
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	f := newFixture(t, 5, 5)
	in := basicInput()
	in.ProductIDs = []string{"A", "Z"}

	_, err := f.placeOrder().Execute(context.Background(), in)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, 5, f.store.Stock("A"))
}

func TestPlaceOrderRejectsZeroTotal(t *testing.T) {
	f := newFixture(t, 5, 5)
	f.store.PutAddress(catalog.Address{
		ID:     "addr-free",
		UserID: "cust-1",
		City:   catalog.City{ID: "alx", Name: "Alexandria", ShipmentFee: decimal.Zero, Active: true},
	})
	f.store.PutCoupon(catalog.Coupon{
		Code:      "FREE",
		Discount:  decimal.NewFromInt(100),
		ValidFrom: time.Now().Add(-time.Hour),
		ValidTo:   time.Now().Add(time.Hour),
		Active:    true,
	})
	in := basicInput()
	in.ShippingAddressID = "addr-free"
	in.CouponCode = "FREE"

	_, err := f.placeOrder().Execute(context.Background(), in)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "total", verr.Field)
	assert.Equal(t, 5, f.store.Stock("A"))
	assert.Equal(t, 5, f.store.Stock("B"))
	assert.Equal(t, 0, f.gateway.calls())
	assert.Empty(t, f.publisher.names())
}

func TestAttachInvoiceWaitsForOrderLock(t *testing.T) {
	f := newFixture(t, 5, 5)
	id := placed(t, f)
	hold := make(chan struct{})
	locked := make(chan struct{})

	go func() {
		_ = f.store.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
			_, _ = tx.Orders().GetForUpdate(ctx, id)
			close(locked)
			<-hold
			return nil
		})
	}()
	<-locked

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := attachInvoice(ctx, f.store, id, &payment.Invoice{InvoiceID: "inv-late", URL: "https://pay.example/late"})
	close(hold)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
