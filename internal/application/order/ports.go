package order

import (
	"github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

type IDGenerator interface {
	NewID() string
}

// GatewayResolver looks up a payment gateway by name; empty means the default.
type GatewayResolver interface {
	Get(name string) (payment.Gateway, error)
}
