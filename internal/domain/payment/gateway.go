package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

var (
	ErrUnrecognizedPayload = errors.New("payment: unrecognized notification payload")
	ErrSignatureInvalid    = errors.New("payment: notification signature invalid")
	ErrUnknownGateway      = errors.New("payment: unknown gateway")
)

// Channel identifies how a notification reached us.
type Channel string

const (
	ChannelRedirect Channel = "redirect_callback"
	ChannelWebhook  Channel = "webhook"
)

type EventStatus string

const (
	EventPaid    EventStatus = "paid"
	EventFailed  EventStatus = "failed"
	EventPending EventStatus = "pending"
)

// CanonicalEvent is a gateway notification reduced to what reconciliation needs.
type CanonicalEvent struct {
	Gateway              string
	OrderID              string
	GatewayTransactionID string
	GatewayInvoiceID     string
	Status               EventStatus
	// Amount is zero when the gateway did not report one.
	Amount      decimal.Decimal
	ReceivedVia Channel
}

type InvoiceRequest struct {
	OrderID      string
	AmountMinor  int64
	Currency     string
	CustomerName string
}

type Invoice struct {
	Gateway   string
	InvoiceID string
	URL       string
}

// Notification is the raw inbound request handed to a gateway adapter.
type Notification struct {
	Channel Channel
	Query   url.Values
	Header  http.Header
	Body    []byte
}

// Gateway is an external payment provider.
// NormalizeNotification returns (nil, nil) for recognized payloads that carry nothing to reconcile.
type Gateway interface {
	Name() string
	RequestInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
	NormalizeNotification(ctx context.Context, n Notification) (*CanonicalEvent, error)
}

type ErrorKind string

const (
	KindTransport  ErrorKind = "transport"
	KindHTTPStatus ErrorKind = "http_status"
	KindDecode     ErrorKind = "decode"
	KindValidation ErrorKind = "validation"
	KindRejected   ErrorKind = "rejected"
)

// GatewayError is returned for every failed call to a provider.
type GatewayError struct {
	Gateway string
	Kind    ErrorKind
	Detail  string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Gateway == "" {
		return fmt.Sprintf("payment gateway %s error: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("payment gateway %s %s error: %s", e.Gateway, e.Kind, e.Detail)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Retryable reports whether the same call may succeed later.
func (e *GatewayError) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindHTTPStatus
}
