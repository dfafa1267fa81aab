// Package sagalog records every transition of an order write saga, keyed by
// order id, so staff can tell whether a header was rolled back and find
// the request trace that did it.
package sagalog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusCompensated  Status = "COMPENSATED"
	// StatusFailed means compensation itself failed and a header may be orphaned.
	StatusFailed Status = "FAILED"
)

// Entry is one appended transition.
type Entry struct {
	OrderID    string    `json:"order_id"`
	Status     Status    `json:"status"`
	Step       string    `json:"step,omitempty"`
	Payload    string    `json:"payload,omitempty"` // order number and summary, STARTED only
	Errors     []string  `json:"errors,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
	SpanID     string    `json:"span_id,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewEntry stamps a transition with the current time and the span active in ctx.
func NewEntry(ctx context.Context, orderID string, status Status, step, payload string, errs []string) Entry {
	e := Entry{
		OrderID:    orderID,
		Status:     status,
		Step:       step,
		Payload:    payload,
		Errors:     errs,
		RecordedAt: time.Now().UTC(),
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}

// Repository appends transitions. Rows are never updated.
type Repository interface {
	Append(ctx context.Context, e Entry) error
}

// Reader returns the transitions of one order, oldest first.
type Reader interface {
	History(ctx context.Context, orderID string) ([]Entry, error)
}
