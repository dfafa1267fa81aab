package notifier

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

// OrderNotifier is the delivery step both dispatchers and the queue worker share.
type OrderNotifier interface {
	NotifyOrder(ctx context.Context, s ports.OrderSummary) error
}

// AsyncDispatcher sends each notification on its own goroutine, detached from
// the request context and bounded by timeout.
type AsyncDispatcher struct {
	notifier OrderNotifier
	timeout  time.Duration
	wg       sync.WaitGroup
}

var _ ports.Dispatcher = (*AsyncDispatcher)(nil)

func NewAsyncDispatcher(n OrderNotifier, timeout time.Duration) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncDispatcher{notifier: n, timeout: timeout}
}

func (d *AsyncDispatcher) Dispatch(ctx context.Context, s ports.OrderSummary) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		_ = Deliver(bgCtx, d.notifier, s)
	}()
}

// Wait blocks until in-flight notifications finish. Used on shutdown.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

// Deliver runs n and logs the outcome. It returns the error for callers that
// decide on redelivery; order creation ignores it.
func Deliver(ctx context.Context, n OrderNotifier, s ports.OrderSummary) error {
	err := n.NotifyOrder(ctx, s)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "order notification sent", "order_number", s.OrderNumber)
	case errors.Is(err, ErrNotConfigured):
		slog.WarnContext(ctx, "order notification skipped: telegram not configured", "order_number", s.OrderNumber)
	default:
		slog.ErrorContext(ctx, "order notification failed", "order_number", s.OrderNumber, "error", err)
	}
	return err
}
