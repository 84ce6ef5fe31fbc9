package zaplogger

import (
	"errors"
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := Wrap(zap.New(core)).With(observability.F("service", "order-service"))

	log.Info("use_case_done",
		observability.F("outcome", "success"),
		observability.F("error", errors.New("boom")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "use_case_done", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "order-service", ctx["service"])
	assert.Equal(t, "success", ctx["outcome"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
