package prometrics

import (
	"testing"

	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterRegisteredOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "", "")

	c1 := r.Counter("things_total", "things", "kind")
	c2 := r.Counter("things_total", "things", "kind")
	c1.Add(1, observability.L("kind", "a"))
	c2.Add(2, observability.L("kind", "a"))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, 3.0, families[0].GetMetric()[0].GetCounter().GetValue())
}

func TestStandardInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters, histograms := Standard(New(reg, "", ""))

	counters[observability.MPaymentNotifications].Add(1,
		observability.L("gateway", "myfatoorah"),
		observability.L("channel", "webhook"),
		observability.L("outcome", "applied"),
	)
	histograms[observability.MUsecaseDuration].Observe(0.2, observability.L("use_case", "order.place"))

	n, err := testutil.GatherAndCount(reg, "payment_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = testutil.GatherAndCount(reg, "usecase_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, counters, observability.MUsecaseRequests)
	assert.Contains(t, histograms, observability.MExternalRequestDuration)
}
