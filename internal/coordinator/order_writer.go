package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jcmexdev/mebel-storefront/internal/coordinator/sagalog"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

// WriteState is the position of an order write in its two-step saga.
type WriteState string

const (
	StateHeaderPending   WriteState = "HEADER_PENDING"
	StateHeaderCommitted WriteState = "HEADER_COMMITTED"
	StateItemsCommitted  WriteState = "ITEMS_COMMITTED"
	StateRolledBack      WriteState = "ROLLED_BACK"
)

var writeTransitions = map[WriteState][]WriteState{
	StateHeaderPending:   {StateHeaderCommitted},
	StateHeaderCommitted: {StateItemsCommitted, StateRolledBack},
}

// WriteTracker enforces the write state machine. A header insert failure leaves
// the state at HEADER_PENDING; a failed compensation leaves it at HEADER_COMMITTED.
type WriteTracker struct {
	mu    sync.Mutex
	state WriteState
}

func NewWriteTracker() *WriteTracker {
	return &WriteTracker{state: StateHeaderPending}
}

func (t *WriteTracker) State() WriteState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *WriteTracker) Advance(next WriteState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, allowed := range writeTransitions[t.state] {
		if allowed == next {
			t.state = next
			return nil
		}
	}
	return fmt.Errorf("illegal write transition %s -> %s", t.state, next)
}

// WriteResult carries the final saga state alongside the persisted order.
type WriteResult struct {
	OrderID string
	State   WriteState
}

// OrderWriter persists an order header and its items as a compensated saga.
type OrderWriter struct {
	repo    ports.OrderRepository
	logRepo sagalog.Repository
}

// NewOrderWriter creates a writer. logRepo may be nil.
func NewOrderWriter(repo ports.OrderRepository, logRepo sagalog.Repository) *OrderWriter {
	return &OrderWriter{repo: repo, logRepo: logRepo}
}

// Write inserts the header then the items under order.ID, assigning one when empty. On item failure the header is deleted.
// Errors wrap domain.ErrPersistence, except a header clash on the idempotency key,
// which is returned as domain.ErrDuplicateKey with nothing written.
func (w *OrderWriter) Write(ctx context.Context, order *domain.Order) (WriteResult, error) {
	// The id exists before the header so every log entry, STARTED included,
	// is keyed on it.
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	tracker := NewWriteTracker()
	steps := []Step{
		NewInsertOrderHeaderStep(w.repo, order, tracker),
		NewInsertOrderItemsStep(w.repo, order, tracker),
	}

	saga := NewOrchestrator(order.ID, steps, w.logRepo).WithPayload(sagaPayload(order))
	err := saga.Start(ctx)
	result := WriteResult{OrderID: order.ID, State: tracker.State()}
	if err == nil {
		return result, nil
	}

	if errors.Is(err, domain.ErrDuplicateKey) && result.State == StateHeaderPending {
		return result, domain.ErrDuplicateKey
	}

	stage := StepInsertOrderHeader
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		stage = stepErr.Step
	}
	return result, &domain.PersistenceError{Stage: stage, Err: err}
}

func sagaPayload(o *domain.Order) string {
	b, err := json.Marshal(struct {
		OrderNumber string `json:"order_number"`
		TotalPrice  string `json:"total_price"`
		Items       int    `json:"items"`
	}{o.OrderNumber, o.TotalPrice.String(), len(o.Items)})
	if err != nil {
		return ""
	}
	return string(b)
}
