package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jcmexdev/mebel-storefront/internal/notifier"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

const prefetch = 10

// ConsumeForever delivers queued notifications until ctx is done, reopening
// the consumer channel whenever it closes.
func ConsumeForever(ctx context.Context, c *Client, n notifier.OrderNotifier, timeout time.Duration) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		ch, err := c.NewConsumerChannel(prefetch)
		if err != nil {
			slog.ErrorContext(ctx, "rabbitmq consumer channel failed", "error", err)
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, 30*time.Second)
			continue
		}
		backoff = time.Second

		deliveries, err := ch.Consume(Queue, "", false, false, false, false, nil)
		if err != nil {
			_ = ch.Close()
			slog.ErrorContext(ctx, "rabbitmq consume failed", "error", err)
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, 30*time.Second)
			continue
		}
		closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	loop:
		for {
			select {
			case <-ctx.Done():
				_ = ch.Close()
				return
			case amqpErr := <-closed:
				slog.ErrorContext(ctx, "rabbitmq consumer channel closed", "error", amqpErr)
				break loop
			case d, ok := <-deliveries:
				if !ok {
					break loop
				}
				dctx, cancel := context.WithTimeout(ctx, timeout)
				HandleDelivery(dctx, n, d)
				cancel()
			}
		}

		if !sleepOrDone(ctx, backoff) {
			return
		}
	}
}

// HandleDelivery sends one queued notification. A failed send is requeued
// once; a second failure dead-letters it. Malformed payloads and missing
// Telegram settings are acked and dropped.
func HandleDelivery(ctx context.Context, n notifier.OrderNotifier, d amqp.Delivery) {
	var s ports.OrderSummary
	if err := json.Unmarshal(d.Body, &s); err != nil {
		slog.ErrorContext(ctx, "order notification decode failed", "error", err)
		_ = d.Ack(false)
		return
	}

	err := notifier.Deliver(ctx, n, s)
	switch {
	case err == nil, errors.Is(err, notifier.ErrNotConfigured):
		if ackErr := d.Ack(false); ackErr != nil {
			slog.ErrorContext(ctx, "rabbitmq ack failed", "error", ackErr)
		}
	default:
		_ = d.Nack(false, !d.Redelivered)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
