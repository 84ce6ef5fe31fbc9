package order

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestInvoiceReusesStoredInvoice(t *testing.T) {
	f := newFixture(t, 5, 5)
	id := placed(t, f)
	uc := NewRequestInvoiceUseCase(f.store, f.registry(), f.ids, f.pricing, nil)

	res, err := uc.Execute(context.Background(), RequestInvoiceInput{OrderID: id})
	require.NoError(t, err)
	assert.True(t, res.Reused)
	assert.Equal(t, "https://pay.example/"+id, res.InvoiceURL)
	assert.Equal(t, 1, f.gateway.calls())
}

func TestRequestInvoiceRetriesAfterGatewayFailure(t *testing.T) {
	f := newFixture(t, 5, 5)
	f.gateway.err = errors.New("gateway down")
	res, err := f.placeOrder().Execute(context.Background(), basicInput())
	require.ErrorIs(t, err, ErrInvoiceUnavailable)

	f.gateway.err = nil
	uc := NewRequestInvoiceUseCase(f.store, f.registry(), f.ids, f.pricing, nil)
	again, err := uc.Execute(context.Background(), RequestInvoiceInput{OrderID: res.OrderID, CustomerName: "Mona"})
	require.NoError(t, err)
	assert.False(t, again.Reused)
	assert.Equal(t, int64(4545), again.AmountMinor)
	assert.Equal(t, "inv-"+res.OrderID, again.InvoiceID)

	third, err := uc.Execute(context.Background(), RequestInvoiceInput{OrderID: res.OrderID})
	require.NoError(t, err)
	assert.True(t, third.Reused)
	assert.Equal(t, 2, f.gateway.calls())
}

func TestRequestInvoiceRefusesSettledOrders(t *testing.T) {
	f := newFixture(t, 5, 5)
	id := placed(t, f)
	markPaid(t, f, id)
	uc := NewRequestInvoiceUseCase(f.store, f.registry(), f.ids, f.pricing, nil)

	_, err := uc.Execute(context.Background(), RequestInvoiceInput{OrderID: id})
	assert.ErrorIs(t, err, ErrOrderNotPayable)
}
