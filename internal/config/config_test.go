package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HTTP_ADDR", "SERVICE_NAME", "ENV", "STORE", "DATABASE_URL", "TAX_RATE",
		"DEFAULT_CURRENCY", "PAYMENT_GATEWAY", "GATEWAY_TIMEOUT", "EVENT_BROKER",
		"KAFKA_BROKERS", "PENDING_ORDER_TTL", "EXPIRY_INTERVAL", "SHUTDOWN_TIMEOUT",
		"PAYMOB_INTEGRATION_ID", "CALLBACK_URL_TEMPLATE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c := Load()

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "memory", c.Store)
	assert.True(t, decimal.RequireFromString("0.01").Equal(c.TaxRate))
	assert.Equal(t, "EGP", c.DefaultCurrency)
	assert.Equal(t, "myfatoorah", c.Gateways.Default)
	assert.Equal(t, 15*time.Second, c.Gateways.Timeout)
	assert.Equal(t, "none", c.Broker.Kind)
	assert.Zero(t, c.PendingOrderTTL)
	assert.Equal(t, time.Minute, c.ExpiryInterval)
	require.NoError(t, c.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("STORE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/shop?sslmode=disable")
	t.Setenv("TAX_RATE", "0.14")
	t.Setenv("PAYMENT_GATEWAY", "paymob")
	t.Setenv("PAYMOB_INTEGRATION_ID", "4242")
	t.Setenv("EVENT_BROKER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PENDING_ORDER_TTL", "30m")
	t.Setenv("SHUTDOWN_TIMEOUT", "3")

	c := Load()

	assert.Equal(t, ":9090", c.HTTPAddr)
	assert.Equal(t, "postgres", c.Store)
	assert.True(t, decimal.RequireFromString("0.14").Equal(c.TaxRate))
	assert.Equal(t, "paymob", c.Gateways.Default)
	assert.Equal(t, 4242, c.Gateways.PayMob.IntegrationID)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Broker.KafkaBrokers)
	assert.Equal(t, 30*time.Minute, c.PendingOrderTTL)
	assert.Equal(t, 3*time.Second, c.ShutdownTimeout)
	require.NoError(t, c.Validate())
}

func TestInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("TAX_RATE", "lots")
	t.Setenv("GATEWAY_TIMEOUT", "soon")

	c := Load()

	assert.True(t, decimal.RequireFromString("0.01").Equal(c.TaxRate))
	assert.Equal(t, 15*time.Second, c.Gateways.Timeout)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE", "postgres")
	t.Setenv("EVENT_BROKER", "nats")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "EVENT_BROKER")
}

func TestCallbackURL(t *testing.T) {
	g := GatewayConfig{CallbackURLTemplate: "https://shop.example/payments/{gateway}/callback?order_id={order_id}"}
	assert.Equal(t, "https://shop.example/payments/paymob/callback?order_id=o-1", g.CallbackURL("paymob", "o-1"))
}

func TestValidateExpiryInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("PENDING_ORDER_TTL", "15m")
	t.Setenv("EXPIRY_INTERVAL", "0s")

	err := Load().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXPIRY_INTERVAL")
}
