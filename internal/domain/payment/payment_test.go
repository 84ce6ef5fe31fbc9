package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct{ name string }

func (g stubGateway) Name() string { return g.name }
func (stubGateway) RequestInvoice(context.Context, InvoiceRequest) (*Invoice, error) {
	return nil, nil
}
func (stubGateway) NormalizeNotification(context.Context, Notification) (*CanonicalEvent, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry("myfatoorah", stubGateway{"myfatoorah"}, stubGateway{"paymob"})

	g, err := r.Get("")
	require.NoError(t, err)
	assert.Equal(t, "myfatoorah", g.Name())

	g, err = r.Get("paymob")
	require.NoError(t, err)
	assert.Equal(t, "paymob", g.Name())

	_, err = r.Get("stripe")
	assert.ErrorIs(t, err, ErrUnknownGateway)
	assert.Equal(t, []string{"myfatoorah", "paymob"}, r.Names())
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(4545), ToMinor(decimal.RequireFromString("45.45")))
	assert.Equal(t, int64(1001), ToMinor(decimal.RequireFromString("10.005")))
	assert.True(t, decimal.RequireFromString("45.45").Equal(FromMinor(4545)))
}

func TestGatewayError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := error(&GatewayError{Gateway: "paymob", Kind: KindTransport, Detail: "auth", Err: cause})

	var ge *GatewayError
	require.True(t, errors.As(err, &ge))
	assert.True(t, ge.Retryable())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "paymob transport")

	assert.False(t, (&GatewayError{Kind: KindRejected}).Retryable())
}

func TestPaymentRefs(t *testing.T) {
	p := New("pay-1", "ord-1", decimal.NewFromInt(10), "myfatoorah")
	p.AttachInvoice(&Invoice{InvoiceID: "inv-9", URL: "https://pay/inv-9"})
	assert.True(t, p.HasInvoice())

	p.Complete("tx-1", "")
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, "tx-1", p.TransactionID)
	assert.Equal(t, "inv-9", p.InvoiceID)
}
