package paymob

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
)

const secret = "hmac-secret"

func newTestGateway(t *testing.T, h http.Handler) *Gateway {
	t.Helper()
	if h == nil {
		h = http.NotFoundHandler()
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:       srv.URL,
		APIKey:        "api-key",
		IntegrationID: 3740968,
		IframeID:      "812",
		HMACSecret:    secret,
	}, gateway.NewClient(Name, time.Second, nil))
}

func TestRequestInvoiceThreeSteps(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "api-key", body["api_key"])
		_, _ = io.WriteString(w, `{"token":"auth-tok"}`)
	})
	mux.HandleFunc("POST /api/ecommerce/orders", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "auth-tok", body["auth_token"])
		assert.EqualValues(t, 4545, body["amount_cents"])
		assert.Equal(t, "ord-1", body["merchant_order_id"])
		_, _ = io.WriteString(w, `{"id":998877}`)
	})
	mux.HandleFunc("POST /api/acceptance/payment_keys", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "998877", body["order_id"])
		assert.EqualValues(t, 3600, body["expiration"])
		assert.EqualValues(t, 3740968, body["integration_id"])
		billing := body["billing_data"].(map[string]any)
		assert.Equal(t, "Mona", billing["first_name"])
		assert.Equal(t, "Adel", billing["last_name"])
		_, _ = io.WriteString(w, `{"token":"pay-key"}`)
	})
	g := newTestGateway(t, mux)

	inv, err := g.RequestInvoice(context.Background(), payment.InvoiceRequest{
		OrderID: "ord-1", AmountMinor: 4545, Currency: "EGP", CustomerName: "Mona Adel",
	})

	require.NoError(t, err)
	assert.Equal(t, "998877", inv.InvoiceID)
	assert.Contains(t, inv.URL, "/api/acceptance/iframes/812?payment_token=pay-key")
}

func TestRequestInvoiceAuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"detail":"Incorrect credentials"}`)
	})
	g := newTestGateway(t, mux)

	_, err := g.RequestInvoice(context.Background(), payment.InvoiceRequest{OrderID: "ord-1", AmountMinor: 100})

	var ge *payment.GatewayError
	require.True(t, errors.As(err, &ge))
	assert.Equal(t, payment.KindHTTPStatus, ge.Kind)
	assert.Contains(t, ge.Detail, "Incorrect credentials")
}

func TestRedirectInquiresTransaction(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"token":"auth-tok"}`)
	})
	mux.HandleFunc("GET /api/acceptance/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "555", r.PathValue("id"))
		assert.Equal(t, "Bearer auth-tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"id":555,"success":true,"pending":false,"amount_cents":4545,
			"order":{"id":998877,"merchant_order_id":"ord-1"}}`)
	})
	g := newTestGateway(t, mux)

	ev, err := g.NormalizeNotification(context.Background(), payment.Notification{
		Channel: payment.ChannelRedirect,
		Query:   url.Values{"id": {"555"}, "order_id": {"ord-1"}, "success": {"false"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "ord-1", ev.OrderID)
	assert.Equal(t, payment.EventPaid, ev.Status)
	assert.Equal(t, "555", ev.GatewayTransactionID)
	assert.True(t, decimal.RequireFromString("45.45").Equal(ev.Amount))
}

func signed(body string) payment.Notification {
	h := http.Header{}
	h.Set(SignatureHeader, gateway.SignHexSHA512(secret, []byte(body)))
	return payment.Notification{Channel: payment.ChannelWebhook, Header: h, Body: []byte(body)}
}

func TestWebhookFlatPayload(t *testing.T) {
	g := newTestGateway(t, nil)

	ev, err := g.NormalizeNotification(context.Background(), signed(`{"order_id":"ord-1","status":"paid","amount_cents":4545,"id":77}`))
	require.NoError(t, err)
	assert.Equal(t, "ord-1", ev.OrderID)
	assert.Equal(t, payment.EventPaid, ev.Status)
	assert.Equal(t, "77", ev.GatewayTransactionID)
	assert.True(t, decimal.RequireFromString("45.45").Equal(ev.Amount))

	ev, err = g.NormalizeNotification(context.Background(), signed(`{"order_id":"ord-1","status":"declined"}`))
	require.NoError(t, err)
	assert.Equal(t, payment.EventFailed, ev.Status)
}

func TestWebhookTransactionEnvelope(t *testing.T) {
	g := newTestGateway(t, nil)

	ev, err := g.NormalizeNotification(context.Background(), signed(
		`{"type":"TRANSACTION","obj":{"id":91,"success":false,"pending":true,"amount_cents":100,"order":{"id":5,"merchant_order_id":"ord-2"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "ord-2", ev.OrderID)
	assert.Equal(t, payment.EventPending, ev.Status)

	ev, err = g.NormalizeNotification(context.Background(), signed(`{"type":"TOKEN","obj":{"id":1}}`))
	assert.NoError(t, err)
	assert.Nil(t, ev)
}

func TestWebhookSignatureRequired(t *testing.T) {
	g := newTestGateway(t, nil)
	n := signed(`{"order_id":"ord-1","status":"paid"}`)
	n.Header.Set(SignatureHeader, "deadbeef")

	_, err := g.NormalizeNotification(context.Background(), n)
	assert.ErrorIs(t, err, payment.ErrSignatureInvalid)

	_, err = g.NormalizeNotification(context.Background(), signed(`{not json`))
	assert.ErrorIs(t, err, payment.ErrUnrecognizedPayload)
}
