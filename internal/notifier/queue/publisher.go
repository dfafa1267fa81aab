package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

// MessagePublisher is the part of Client the Publisher needs.
type MessagePublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Publisher is a ports.Dispatcher that hands summaries to RabbitMQ instead of
// calling Telegram in-process.
type Publisher struct {
	mq      MessagePublisher
	timeout time.Duration
	wg      sync.WaitGroup
}

var _ ports.Dispatcher = (*Publisher)(nil)

func NewPublisher(mq MessagePublisher, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{mq: mq, timeout: timeout}
}

func (p *Publisher) Dispatch(ctx context.Context, s ports.OrderSummary) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		p.publish(ctx, s)
	}()
}

// Wait blocks until in-flight publishes finish.
func (p *Publisher) Wait() {
	p.wg.Wait()
}

func (p *Publisher) publish(ctx context.Context, s ports.OrderSummary) {
	body, err := json.Marshal(s)
	if err != nil {
		slog.ErrorContext(ctx, "order notification encode failed", "order_number", s.OrderNumber, "error", err)
		return
	}
	if err := p.mq.Publish(ctx, RoutingKey, body); err != nil {
		slog.ErrorContext(ctx, "order notification publish failed", "order_number", s.OrderNumber, "error", err)
		return
	}
	slog.DebugContext(ctx, "order notification queued", "order_number", s.OrderNumber)
}
