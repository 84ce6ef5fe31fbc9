package payment

import (
	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

type IDGenerator interface {
	NewID() string
}

type GatewayResolver interface {
	Get(name string) (dompay.Gateway, error)
}
