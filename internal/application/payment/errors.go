package payment

import (
	"errors"

	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

var (
	ErrOrderNotFound       = errors.New("payment: order not found")
	ErrSignatureInvalid    = dompay.ErrSignatureInvalid
	ErrUnrecognizedPayload = dompay.ErrUnrecognizedPayload
	ErrUnknownGateway      = dompay.ErrUnknownGateway
)

// Outcome describes what reconciliation did with an event.
type Outcome string

const (
	OutcomeApplied           Outcome = "applied"
	OutcomeDuplicate         Outcome = "duplicate"
	OutcomeIgnoredPaidSticky Outcome = "ignored_paid_sticky"
	OutcomeOrderTerminal     Outcome = "order_terminal"
	OutcomeOrderNotFound     Outcome = "order_not_found"
	OutcomeNoop              Outcome = "noop"

	// notification-only outcomes
	OutcomeUnknownGateway   Outcome = "unknown_gateway"
	OutcomeSignatureInvalid Outcome = "signature_invalid"
	OutcomeUnrecognized     Outcome = "unrecognized"
	OutcomeGatewayError     Outcome = "gateway_error"
	OutcomeStoreError       Outcome = "store_error"
)
