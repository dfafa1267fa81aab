package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/mebel-storefront/internal/notifier"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

type ackRecorder struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error {
	a.acks++
	return nil
}

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error { return nil }

type stubNotifier struct {
	err error
	got []ports.OrderSummary
}

func (s *stubNotifier) NotifyOrder(_ context.Context, summary ports.OrderSummary) error {
	s.got = append(s.got, summary)
	return s.err
}

func delivery(t *testing.T, ack amqp.Acknowledger, redelivered bool) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(ports.OrderSummary{OrderNumber: "ORD-20240101-0001", TotalPrice: "10"})
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, Body: body, Redelivered: redelivered}
}

func TestHandleDelivery(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		redelivered bool
		wantAcks    int
		wantNacks   int
		wantRequeue bool
	}{
		{name: "sent", wantAcks: 1},
		{name: "not configured is dropped", err: notifier.ErrNotConfigured, wantAcks: 1},
		{name: "first failure requeues", err: errors.New("telegram down"), wantNacks: 1, wantRequeue: true},
		{name: "second failure dead-letters", err: errors.New("telegram down"), redelivered: true, wantNacks: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &ackRecorder{}
			n := &stubNotifier{err: tt.err}

			HandleDelivery(context.Background(), n, delivery(t, ack, tt.redelivered))

			require.Len(t, n.got, 1)
			assert.Equal(t, "ORD-20240101-0001", n.got[0].OrderNumber)
			assert.Equal(t, tt.wantAcks, ack.acks)
			assert.Equal(t, tt.wantNacks, ack.nacks)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
		})
	}
}

func TestHandleDelivery_MalformedBody(t *testing.T) {
	ack := &ackRecorder{}
	n := &stubNotifier{}
	HandleDelivery(context.Background(), n, amqp.Delivery{Acknowledger: ack, Body: []byte("{")})

	assert.Empty(t, n.got)
	assert.Equal(t, 1, ack.acks)
}

type recordingMQ struct {
	key  string
	body []byte
	err  error
}

func (r *recordingMQ) Publish(_ context.Context, key string, body []byte) error {
	r.key, r.body = key, body
	return r.err
}

func TestPublisher_Dispatch(t *testing.T) {
	mq := &recordingMQ{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPublisher(mq, 0)
	p.Dispatch(ctx, ports.OrderSummary{OrderNumber: "ORD-20240101-0002"})
	p.Wait()

	assert.Equal(t, RoutingKey, mq.key)
	var got ports.OrderSummary
	require.NoError(t, json.Unmarshal(mq.body, &got))
	assert.Equal(t, "ORD-20240101-0002", got.OrderNumber)
}

func TestPublisher_DispatchSwallowsErrors(t *testing.T) {
	mq := &recordingMQ{err: errors.New("broker unavailable")}
	p := NewPublisher(mq, 0)
	assert.NotPanics(t, func() {
		p.Dispatch(context.Background(), ports.OrderSummary{OrderNumber: "x"})
		p.Wait()
	})
}
