package workerpresentation

import (
	"context"
	"sync"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	appOrder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const jobExpirePendingOrders = "expire_pending_orders"

// ExpiryWorker periodically cancels orders left unpaid past their TTL.
type ExpiryWorker struct {
	uc       application.UseCase[appOrder.ExpirePendingOrdersInput, *appOrder.ExpirePendingOrdersResult]
	interval time.Duration
	log      observability.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewExpiryWorker(
	uc application.UseCase[appOrder.ExpirePendingOrdersInput, *appOrder.ExpirePendingOrdersResult],
	interval time.Duration,
	logger observability.Logger,
) *ExpiryWorker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryWorker{
		uc:       uc,
		interval: interval,
		log:      logger.With(observability.F("component", "expiry_worker")),
	}
}

func (w *ExpiryWorker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		w.log.Info("expiry_worker_started", observability.F("interval", w.interval.String()))
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				w.RunOnce(ctx, now)
			}
		}
	}()
}

// RunOnce performs a single sweep.
func (w *ExpiryWorker) RunOnce(ctx context.Context, now time.Time) {
	runCtx := WithRunContext(ctx, w.log, map[string]string{"job": jobExpirePendingOrders})
	if _, err := w.uc.Execute(runCtx, appOrder.ExpirePendingOrdersInput{Now: now}); err != nil && ctx.Err() == nil {
		w.log.Warn("expiry_sweep_failed", observability.F("error", err))
	}
}

// Stop cancels the ticker loop and waits for an in-flight sweep.
func (w *ExpiryWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.log.Info("expiry_worker_stopped")
}
