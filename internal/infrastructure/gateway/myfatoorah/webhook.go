package myfatoorah

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/infrastructure/gateway"
)

// Webhook event types as numbered by MyFatoorah.
const (
	EventTransactionStatusChanged = 1
	EventRefundStatusChanged      = 2
	EventBalanceTransferred       = 3
	EventSupplierStatusChanged    = 4
	EventRecurringStatusChanged   = 5
)

// webhookEvent is the closed set of decoded webhook payloads.
type webhookEvent interface {
	webhookEvent()
}

type transactionStatusChanged struct {
	OrderID           gateway.FlexString `json:"OrderId"`
	PaymentID         gateway.FlexString `json:"PaymentId"`
	TransactionID     gateway.FlexString `json:"TransactionId"`
	InvoiceID         gateway.FlexString `json:"InvoiceId"`
	PaymentStatus     string             `json:"PaymentStatus"`
	TransactionStatus string             `json:"TransactionStatus"`
	UserDefinedField  string             `json:"UserDefinedField"`
	CustomerReference string             `json:"CustomerReference"`
	InvoiceValue      decimal.Decimal    `json:"InvoiceValue"`
}

type refundStatusChanged struct{ Data json.RawMessage }
type balanceTransferred struct{ Data json.RawMessage }
type supplierStatusChanged struct{ Data json.RawMessage }
type recurringStatusChanged struct{ Data json.RawMessage }
type unknownEvent struct {
	EventType int
	Data      json.RawMessage
}

func (transactionStatusChanged) webhookEvent() {}
func (refundStatusChanged) webhookEvent()      {}
func (balanceTransferred) webhookEvent()       {}
func (supplierStatusChanged) webhookEvent()    {}
func (recurringStatusChanged) webhookEvent()   {}
func (unknownEvent) webhookEvent()             {}

func decodeWebhook(body []byte) (webhookEvent, error) {
	var env struct {
		EventType int             `json:"EventType"`
		Data      json.RawMessage `json:"Data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrUnrecognizedPayload, err)
	}

	switch env.EventType {
	case EventTransactionStatusChanged:
		var e transactionStatusChanged
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("%w: transaction event without data", payment.ErrUnrecognizedPayload)
		}
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", payment.ErrUnrecognizedPayload, err)
		}
		return e, nil
	case EventRefundStatusChanged:
		return refundStatusChanged{Data: env.Data}, nil
	case EventBalanceTransferred:
		return balanceTransferred{Data: env.Data}, nil
	case EventSupplierStatusChanged:
		return supplierStatusChanged{Data: env.Data}, nil
	case EventRecurringStatusChanged:
		return recurringStatusChanged{Data: env.Data}, nil
	default:
		return unknownEvent{EventType: env.EventType, Data: env.Data}, nil
	}
}
