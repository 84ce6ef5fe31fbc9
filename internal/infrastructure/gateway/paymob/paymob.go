// Package paymob adapts the PayMob Accept API to payment.Gateway.
package paymob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
)

const (
	Name            = "paymob"
	SignatureHeader = "HMAC"

	paymentKeyExpiry = 3600
)

type Config struct {
	BaseURL       string
	APIKey        string
	IntegrationID int
	IframeID      string
	HMACSecret    string
}

type Gateway struct {
	cfg    Config
	client *gateway.Client
}

var _ payment.Gateway = (*Gateway)(nil)

func New(cfg Config, client *gateway.Client) *Gateway {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Gateway{cfg: cfg, client: client}
}

func (g *Gateway) Name() string { return Name }

type billingData struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	PhoneNumber    string `json:"phone_number"`
	Apartment      string `json:"apartment"`
	Floor          string `json:"floor"`
	Street         string `json:"street"`
	Building       string `json:"building"`
	ShippingMethod string `json:"shipping_method"`
	PostalCode     string `json:"postal_code"`
	City           string `json:"city"`
	Country        string `json:"country"`
	State          string `json:"state"`
}

// RequestInvoice runs the three-step Accept flow: authenticate, register the
// order, then mint a payment key for the hosted iframe.
func (g *Gateway) RequestInvoice(ctx context.Context, req payment.InvoiceRequest) (*payment.Invoice, error) {
	if req.OrderID == "" || req.AmountMinor <= 0 {
		return nil, g.client.Fail(payment.KindValidation, "order id and a positive amount are required")
	}
	token, err := g.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var registered struct {
		ID gateway.FlexString `json:"id"`
	}
	if err := g.post(ctx, "register_order", "/api/ecommerce/orders", map[string]any{
		"auth_token":        token,
		"delivery_needed":   false,
		"amount_cents":      req.AmountMinor,
		"currency":          req.Currency,
		"merchant_order_id": req.OrderID,
		"items":             []any{},
	}, &registered); err != nil {
		return nil, err
	}
	if registered.ID == "" {
		return nil, g.client.Fail(payment.KindDecode, "register_order response has no id")
	}

	first, last := splitName(req.CustomerName)
	var key struct {
		Token string `json:"token"`
	}
	if err := g.post(ctx, "payment_key", "/api/acceptance/payment_keys", map[string]any{
		"auth_token":     token,
		"amount_cents":   req.AmountMinor,
		"expiration":     paymentKeyExpiry,
		"order_id":       registered.ID.String(),
		"currency":       req.Currency,
		"integration_id": g.cfg.IntegrationID,
		"billing_data": billingData{
			FirstName: first, LastName: last,
			Email: "NA", PhoneNumber: "NA", Apartment: "NA", Floor: "NA", Street: "NA",
			Building: "NA", ShippingMethod: "NA", PostalCode: "NA", City: "NA", Country: "NA", State: "NA",
		},
	}, &key); err != nil {
		return nil, err
	}
	if key.Token == "" {
		return nil, g.client.Fail(payment.KindDecode, "payment_key response has no token")
	}

	iframe := fmt.Sprintf("%s/api/acceptance/iframes/%s?payment_token=%s",
		g.cfg.BaseURL, url.PathEscape(g.cfg.IframeID), url.QueryEscape(key.Token))
	return &payment.Invoice{Gateway: Name, InvoiceID: registered.ID.String(), URL: iframe}, nil
}

func (g *Gateway) NormalizeNotification(ctx context.Context, n payment.Notification) (*payment.CanonicalEvent, error) {
	switch n.Channel {
	case payment.ChannelRedirect:
		return g.normalizeRedirect(ctx, n)
	case payment.ChannelWebhook:
		return g.normalizeWebhook(n)
	default:
		return nil, fmt.Errorf("%w: channel %q", payment.ErrUnrecognizedPayload, n.Channel)
	}
}

// transaction is the subset of an Accept transaction object we reconcile on.
type transaction struct {
	ID          gateway.FlexString `json:"id"`
	Success     bool               `json:"success"`
	Pending     bool               `json:"pending"`
	IsVoided    bool               `json:"is_voided"`
	IsRefunded  bool               `json:"is_refunded"`
	AmountCents int64              `json:"amount_cents"`
	Order       struct {
		ID              gateway.FlexString `json:"id"`
		MerchantOrderID string             `json:"merchant_order_id"`
	} `json:"order"`
}

func (t transaction) status() payment.EventStatus {
	switch {
	case t.Pending:
		return payment.EventPending
	case t.Success && !t.IsVoided && !t.IsRefunded:
		return payment.EventPaid
	default:
		return payment.EventFailed
	}
}

// normalizeRedirect re-reads the transaction from PayMob instead of trusting
// the success flag on the redirect URL.
func (g *Gateway) normalizeRedirect(ctx context.Context, n payment.Notification) (*payment.CanonicalEvent, error) {
	txID := strings.TrimSpace(n.Query.Get("id"))
	queryOrderID := strings.TrimSpace(n.Query.Get("order_id"))
	if txID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", payment.ErrUnrecognizedPayload)
	}

	token, err := g.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := g.client.Do(ctx, gateway.Request{
		Endpoint: "transaction_inquiry",
		Method:   http.MethodGet,
		URL:      g.cfg.BaseURL + "/api/acceptance/transactions/" + url.PathEscape(txID),
		Header:   http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		return nil, g.enrich(err, raw)
	}
	var tx transaction
	if err := g.client.DecodeJSON(raw, &tx); err != nil {
		return nil, err
	}

	orderID := tx.Order.MerchantOrderID
	if orderID == "" {
		orderID = queryOrderID
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: transaction %s carries no merchant order id", payment.ErrUnrecognizedPayload, txID)
	}
	if queryOrderID != "" && queryOrderID != orderID {
		return nil, fmt.Errorf("%w: order_id %s does not match transaction %s", payment.ErrUnrecognizedPayload, queryOrderID, txID)
	}

	return &payment.CanonicalEvent{
		Gateway:              Name,
		OrderID:              orderID,
		GatewayTransactionID: tx.ID.String(),
		GatewayInvoiceID:     tx.Order.ID.String(),
		Status:               tx.status(),
		Amount:               payment.FromMinor(tx.AmountCents),
		ReceivedVia:          payment.ChannelRedirect,
	}, nil
}

// webhookBody accepts both the processed-callback envelope ({"type","obj"}) and
// the flat {order_id,status,amount_cents,id} form.
type webhookBody struct {
	Type        string             `json:"type"`
	Obj         *transaction       `json:"obj"`
	OrderID     gateway.FlexString `json:"order_id"`
	Status      string             `json:"status"`
	AmountCents int64              `json:"amount_cents"`
	ID          gateway.FlexString `json:"id"`
}

func (g *Gateway) normalizeWebhook(n payment.Notification) (*payment.CanonicalEvent, error) {
	if !gateway.VerifyHexSHA512(g.cfg.HMACSecret, n.Body, n.Header.Get(SignatureHeader)) {
		return nil, payment.ErrSignatureInvalid
	}

	var body webhookBody
	if err := json.Unmarshal(n.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrUnrecognizedPayload, err)
	}

	if body.Obj != nil {
		if body.Type != "" && !strings.EqualFold(body.Type, "TRANSACTION") {
			return nil, nil
		}
		tx := body.Obj
		if tx.Order.MerchantOrderID == "" {
			return nil, fmt.Errorf("%w: transaction without merchant order id", payment.ErrUnrecognizedPayload)
		}
		return &payment.CanonicalEvent{
			Gateway:              Name,
			OrderID:              tx.Order.MerchantOrderID,
			GatewayTransactionID: tx.ID.String(),
			GatewayInvoiceID:     tx.Order.ID.String(),
			Status:               tx.status(),
			Amount:               payment.FromMinor(tx.AmountCents),
			ReceivedVia:          payment.ChannelWebhook,
		}, nil
	}

	if body.OrderID == "" {
		return nil, fmt.Errorf("%w: order_id is required", payment.ErrUnrecognizedPayload)
	}
	return &payment.CanonicalEvent{
		Gateway:              Name,
		OrderID:              body.OrderID.String(),
		GatewayTransactionID: body.ID.String(),
		Status:               mapStatus(body.Status),
		Amount:               payment.FromMinor(body.AmountCents),
		ReceivedVia:          payment.ChannelWebhook,
	}, nil
}

func (g *Gateway) authenticate(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := g.post(ctx, "auth", "/api/auth/tokens", map[string]string{"api_key": g.cfg.APIKey}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", g.client.Fail(payment.KindRejected, "auth returned no token")
	}
	return out.Token, nil
}

func (g *Gateway) post(ctx context.Context, endpoint, path string, body, out any) error {
	raw, err := g.client.Do(ctx, gateway.Request{
		Endpoint: endpoint,
		Method:   http.MethodPost,
		URL:      g.cfg.BaseURL + path,
		Body:     body,
	})
	if err != nil {
		return g.enrich(err, raw)
	}
	return g.client.DecodeJSON(raw, out)
}

// enrich appends PayMob's "detail"/"message" text to status errors.
func (g *Gateway) enrich(err error, raw []byte) error {
	var ge *payment.GatewayError
	if !errors.As(err, &ge) || len(raw) == 0 {
		return err
	}
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return err
	}
	if msg := strings.TrimSpace(body.Detail + " " + body.Message); msg != "" {
		ge.Detail = ge.Detail + ": " + msg
	}
	return ge
}

func mapStatus(s string) payment.EventStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "success", "true":
		return payment.EventPaid
	case "pending":
		return payment.EventPending
	default:
		return payment.EventFailed
	}
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "NA", "NA"
	case 1:
		return parts[0], "NA"
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
