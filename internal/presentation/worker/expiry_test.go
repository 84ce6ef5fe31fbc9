package workerpresentation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appOrder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

type sweepRecorder struct {
	mu    sync.Mutex
	runs  []time.Time
	ctxOK bool
	err   error
}

func (r *sweepRecorder) Execute(ctx context.Context, in appOrder.ExpirePendingOrdersInput) (*appOrder.ExpirePendingOrdersResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, in.Now)
	r.ctxOK = logctx.From(ctx) != nil
	return &appOrder.ExpirePendingOrdersResult{}, r.err
}

func (r *sweepRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func TestRunOncePassesTimeAndRunLogger(t *testing.T) {
	rec := &sweepRecorder{err: errors.New("store down")}
	w := NewExpiryWorker(rec, time.Minute, nil)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	w.RunOnce(context.Background(), at)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, at, rec.runs[0])
	assert.True(t, rec.ctxOK)
}

func TestWorkerTicksUntilStopped(t *testing.T) {
	rec := &sweepRecorder{}
	w := NewExpiryWorker(rec, 5*time.Millisecond, observability.NopLogger())
	w.Start(context.Background())

	assert.Eventually(t, func() bool { return rec.count() >= 2 }, time.Second, 5*time.Millisecond)
	w.Stop()

	n := rec.count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, rec.count())
}
