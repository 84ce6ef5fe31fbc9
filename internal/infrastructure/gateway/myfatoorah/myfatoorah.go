// Package myfatoorah adapts the MyFatoorah v2 invoice API to payment.Gateway.
package myfatoorah

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
)

const (
	Name            = "myfatoorah"
	SignatureHeader = "MyFatoorah-Signature"
)

type Config struct {
	BaseURL         string
	APIKey          string
	WebhookSecret   string
	CustomerCountry string
	// CallbackURL builds the redirect target for an order.
	CallbackURL func(orderID string) string
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

type sendPaymentRequest struct {
	CustomerName       string          `json:"CustomerName"`
	NotificationOption string          `json:"NotificationOption"`
	InvoiceValue       decimal.Decimal `json:"InvoiceValue"`
	CurrencyIso        string          `json:"CurrencyIso,omitempty"`
	CallBackURL        string          `json:"CallBackUrl,omitempty"`
	ErrorURL           string          `json:"ErrorUrl,omitempty"`
	UserDefinedField   string          `json:"UserDefinedField"`
	CustomerReference  string          `json:"CustomerReference"`
	CustomerCountry    string          `json:"CustomerCountry,omitempty"`
}

type sendPaymentData struct {
	InvoiceID  gateway.FlexString `json:"InvoiceId"`
	InvoiceURL string             `json:"InvoiceURL"`
}

func (g *Gateway) RequestInvoice(ctx context.Context, req payment.InvoiceRequest) (*payment.Invoice, error) {
	if req.OrderID == "" || req.AmountMinor <= 0 {
		return nil, g.client.Fail(payment.KindValidation, "order id and a positive amount are required")
	}
	customer := req.CustomerName
	if customer == "" {
		customer = "Customer"
	}
	callback := ""
	if g.cfg.CallbackURL != nil {
		callback = g.cfg.CallbackURL(req.OrderID)
	}

	var data sendPaymentData
	err := g.call(ctx, "send_payment", "/v2/SendPayment", sendPaymentRequest{
		CustomerName:       customer,
		NotificationOption: "LNK",
		InvoiceValue:       payment.FromMinor(req.AmountMinor),
		CurrencyIso:        req.Currency,
		CallBackURL:        callback,
		ErrorURL:           callback,
		UserDefinedField:   req.OrderID,
		CustomerReference:  req.OrderID,
		CustomerCountry:    g.cfg.CustomerCountry,
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.InvoiceURL == "" {
		return nil, g.client.Fail(payment.KindDecode, "send_payment response has no InvoiceURL")
	}
	return &payment.Invoice{Gateway: Name, InvoiceID: data.InvoiceID.String(), URL: data.InvoiceURL}, nil
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

type statusRequest struct {
	Key     string `json:"Key"`
	KeyType string `json:"KeyType"`
}

type statusData struct {
	InvoiceID           gateway.FlexString `json:"InvoiceId"`
	InvoiceStatus       string             `json:"InvoiceStatus"`
	InvoiceValue        decimal.Decimal    `json:"InvoiceValue"`
	UserDefinedField    string             `json:"UserDefinedField"`
	CustomerReference   string             `json:"CustomerReference"`
	InvoiceTransactions []struct {
		TransactionID     gateway.FlexString `json:"TransactionId"`
		PaymentID         gateway.FlexString `json:"PaymentId"`
		TransactionStatus string             `json:"TransactionStatus"`
	} `json:"InvoiceTransactions"`
}

// normalizeRedirect never trusts the query string: the payment id is resolved
// through GetPaymentStatus and only the provider's answer is used.
func (g *Gateway) normalizeRedirect(ctx context.Context, n payment.Notification) (*payment.CanonicalEvent, error) {
	paymentID := strings.TrimSpace(n.Query.Get("paymentId"))
	queryOrderID := strings.TrimSpace(n.Query.Get("order_id"))
	if paymentID == "" {
		return nil, fmt.Errorf("%w: paymentId is required", payment.ErrUnrecognizedPayload)
	}

	var data statusData
	if err := g.call(ctx, "get_payment_status", "/v2/GetPaymentStatus",
		statusRequest{Key: paymentID, KeyType: "PaymentId"}, &data); err != nil {
		return nil, err
	}

	orderID := firstNonEmpty(data.UserDefinedField, data.CustomerReference)
	if orderID == "" {
		orderID = queryOrderID
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: payment %s carries no order reference", payment.ErrUnrecognizedPayload, paymentID)
	}
	if queryOrderID != "" && queryOrderID != orderID {
		return nil, fmt.Errorf("%w: order_id %s does not match payment %s", payment.ErrUnrecognizedPayload, queryOrderID, paymentID)
	}

	txID := strings.TrimSpace(n.Query.Get("id"))
	for _, t := range data.InvoiceTransactions {
		if t.PaymentID.String() == paymentID {
			txID = firstNonEmpty(t.TransactionID.String(), t.PaymentID.String())
			break
		}
	}
	if txID == "" {
		txID = paymentID
	}

	return &payment.CanonicalEvent{
		Gateway:              Name,
		OrderID:              orderID,
		GatewayTransactionID: txID,
		GatewayInvoiceID:     data.InvoiceID.String(),
		Status:               mapStatus(data.InvoiceStatus),
		Amount:               data.InvoiceValue,
		ReceivedVia:          payment.ChannelRedirect,
	}, nil
}

func (g *Gateway) normalizeWebhook(n payment.Notification) (*payment.CanonicalEvent, error) {
	if !gateway.VerifyBase64SHA256(g.cfg.WebhookSecret, n.Body, n.Header.Get(SignatureHeader)) {
		return nil, payment.ErrSignatureInvalid
	}

	ev, err := decodeWebhook(n.Body)
	if err != nil {
		return nil, err
	}

	switch e := ev.(type) {
	case transactionStatusChanged:
		orderID := firstNonEmpty(e.OrderID.String(), e.UserDefinedField, e.CustomerReference)
		if orderID == "" {
			return nil, fmt.Errorf("%w: transaction event without order reference", payment.ErrUnrecognizedPayload)
		}
		return &payment.CanonicalEvent{
			Gateway:              Name,
			OrderID:              orderID,
			GatewayTransactionID: firstNonEmpty(e.TransactionID.String(), e.PaymentID.String()),
			GatewayInvoiceID:     e.InvoiceID.String(),
			Status:               mapStatus(firstNonEmpty(e.PaymentStatus, e.TransactionStatus)),
			Amount:               e.InvoiceValue,
			ReceivedVia:          payment.ChannelWebhook,
		}, nil
	default:
		// refunds, balance transfers, supplier and recurring updates carry nothing to reconcile
		return nil, nil
	}
}

type envelope struct {
	IsSuccess        bool            `json:"IsSuccess"`
	Message          string          `json:"Message"`
	ErrorMessage     string          `json:"ErrorMessage"`
	ValidationErrors []fieldError    `json:"ValidationErrors"`
	Data             json.RawMessage `json:"Data"`
}

type fieldError struct {
	Name  string `json:"Name"`
	Error string `json:"Error"`
}

func (g *Gateway) call(ctx context.Context, endpoint, path string, body, out any) error {
	raw, err := g.client.Do(ctx, gateway.Request{
		Endpoint: endpoint,
		Method:   http.MethodPost,
		URL:      g.cfg.BaseURL + path,
		Header:   http.Header{"Authorization": []string{"Bearer " + g.cfg.APIKey}},
		Body:     body,
	})

	var ge *payment.GatewayError
	if err != nil && !(errors.As(err, &ge) && ge.Kind == payment.KindHTTPStatus && len(raw) > 0) {
		return err
	}

	var env envelope
	if derr := g.client.DecodeJSON(raw, &env); derr != nil {
		if err != nil {
			return err
		}
		return derr
	}
	if rerr := g.responseError(env); rerr != nil {
		if err != nil {
			// keep the status kind, enrich the detail with the provider message
			ge.Detail = ge.Detail + ": " + rerr.Detail
			return ge
		}
		return rerr
	}
	if err != nil {
		return err
	}
	return g.client.DecodeJSON(env.Data, out)
}

// responseError maps a MyFatoorah envelope to a GatewayError, checking the
// fields in the order the provider documents them.
func (g *Gateway) responseError(env envelope) *payment.GatewayError {
	if env.IsSuccess {
		return nil
	}
	if len(env.ValidationErrors) > 0 {
		parts := make([]string, 0, len(env.ValidationErrors))
		for _, fe := range env.ValidationErrors {
			parts = append(parts, fe.Name+": "+fe.Error)
		}
		return g.client.Fail(payment.KindValidation, strings.Join(parts, "; "))
	}
	if env.ErrorMessage != "" {
		return g.client.Fail(payment.KindRejected, env.ErrorMessage)
	}
	if env.Message != "" {
		return g.client.Fail(payment.KindRejected, env.Message)
	}
	var data struct {
		ErrorMessage string `json:"ErrorMessage"`
	}
	if len(env.Data) > 0 && json.Unmarshal(env.Data, &data) == nil && data.ErrorMessage != "" {
		return g.client.Fail(payment.KindRejected, data.ErrorMessage)
	}
	return g.client.Fail(payment.KindRejected, "request was not successful")
}

func mapStatus(s string) payment.EventStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "success", "succss", "captured":
		return payment.EventPaid
	case "failed", "canceled", "cancelled", "expired", "declined":
		return payment.EventFailed
	default:
		return payment.EventPending
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
