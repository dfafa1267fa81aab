package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/mebel-storefront/internal/coordinator/sagalog"
	sagasqlite "github.com/jcmexdev/mebel-storefront/internal/coordinator/sagalog/sqlite"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports/portstest"
)

func newOrder() *domain.Order {
	return &domain.Order{
		OrderNumber:   "ORD-20240101-0042",
		CustomerName:  "Aziz Aliyev",
		CustomerPhone: "+998901234567",
		TotalPrice:    decimal.NewFromInt(300000),
		Items: []domain.OrderItem{
			{ProductID: "P1", ProductName: "Диван", PriceSnapshot: decimal.NewFromInt(150000), Quantity: 2},
		},
	}
}

func newLog(t *testing.T) *sagasqlite.Repository {
	t.Helper()
	repo, err := sagasqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func statuses(t *testing.T, log *sagasqlite.Repository, sagaID string) []sagalog.Status {
	t.Helper()
	entries, err := log.History(context.Background(), sagaID)
	require.NoError(t, err)
	out := make([]sagalog.Status, len(entries))
	for i, e := range entries {
		out[i] = e.Status
	}
	return out
}

func TestOrderWriter_Success(t *testing.T) {
	orders := portstest.NewOrders()
	log := newLog(t)
	order := newOrder()

	res, err := NewOrderWriter(orders, log).Write(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, StateItemsCommitted, res.State)
	assert.NotEmpty(t, res.OrderID)
	assert.Equal(t, res.OrderID, order.ID)

	header, ok := orders.Header(res.OrderID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusNew, header.Status)

	items := orders.Items(res.OrderID)
	require.Len(t, items, 1)
	assert.Equal(t, res.OrderID, items[0].OrderID)

	assert.Equal(t, []sagalog.Status{
		sagalog.StatusStarted, sagalog.StatusStepDone, sagalog.StatusStepDone, sagalog.StatusCompleted,
	}, statuses(t, log, order.ID))
}

func TestOrderWriter_SharedOrderNumberKeepsSeparateHistories(t *testing.T) {
	orders := portstest.NewOrders()
	log := newLog(t)
	w := NewOrderWriter(orders, log)

	first, second := newOrder(), newOrder()
	_, err := w.Write(context.Background(), first)
	require.NoError(t, err)
	orders.FailItems = true
	_, err = w.Write(context.Background(), second)
	require.Error(t, err)

	require.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, sagalog.StatusCompleted, statuses(t, log, first.ID)[3])
	assert.Equal(t, sagalog.StatusCompensated, statuses(t, log, second.ID)[3])
}

func TestOrderWriter_KeepsAssignedID(t *testing.T) {
	orders := portstest.NewOrders()
	order := newOrder()
	order.ID = "5d0c7c52-9f77-4a8b-a2a1-8a0c3f1e2b10"

	res, err := NewOrderWriter(orders, nil).Write(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, order.ID, res.OrderID)
}

func TestOrderWriter_HeaderFailureWritesNothing(t *testing.T) {
	orders := portstest.NewOrders()
	orders.FailHeader = true

	res, err := NewOrderWriter(orders, nil).Write(context.Background(), newOrder())
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrPersistence)
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StepInsertOrderHeader, perr.Stage)
	assert.Equal(t, StateHeaderPending, res.State)
	assert.Zero(t, orders.HeaderCount())
	assert.Empty(t, orders.Deleted)
}

func TestOrderWriter_ItemsFailureCompensatesHeader(t *testing.T) {
	orders := portstest.NewOrders()
	orders.FailItems = true
	log := newLog(t)
	order := newOrder()

	res, err := NewOrderWriter(orders, log).Write(context.Background(), order)
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.ErrorIs(t, err, portstest.ErrInjected)
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StepInsertOrderItems, perr.Stage)

	assert.Equal(t, StateRolledBack, res.State)
	assert.Zero(t, orders.HeaderCount(), "header must be deleted by compensation")
	assert.Equal(t, []string{res.OrderID}, orders.Deleted)

	assert.Equal(t, []sagalog.Status{
		sagalog.StatusStarted, sagalog.StatusStepDone, sagalog.StatusCompensating, sagalog.StatusCompensated,
	}, statuses(t, log, order.ID))
}

func TestOrderWriter_CompensationFailureIsReported(t *testing.T) {
	orders := portstest.NewOrders()
	orders.FailItems = true
	orders.FailDelete = true

	res, err := NewOrderWriter(orders, nil).Write(context.Background(), newOrder())
	require.Error(t, err)

	assert.ErrorIs(t, err, domain.ErrPersistence)
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Error(t, stepErr.CompensationErr)
	assert.Equal(t, StateHeaderCommitted, res.State)
	assert.Equal(t, 1, orders.HeaderCount())
}

func TestOrderWriter_DuplicateIdempotencyKey(t *testing.T) {
	orders := portstest.NewOrders()
	first := newOrder()
	first.IdempotencyKey = "key-1"
	_, err := NewOrderWriter(orders, nil).Write(context.Background(), first)
	require.NoError(t, err)

	second := newOrder()
	second.IdempotencyKey = "key-1"
	res, err := NewOrderWriter(orders, nil).Write(context.Background(), second)

	assert.True(t, errors.Is(err, domain.ErrDuplicateKey))
	assert.False(t, errors.Is(err, domain.ErrPersistence))
	assert.Equal(t, StateHeaderPending, res.State)
	assert.Equal(t, 1, orders.HeaderCount())
}

func TestWriteTracker_RejectsIllegalTransitions(t *testing.T) {
	tr := NewWriteTracker()
	assert.Error(t, tr.Advance(StateItemsCommitted))
	assert.Error(t, tr.Advance(StateRolledBack))

	require.NoError(t, tr.Advance(StateHeaderCommitted))
	require.NoError(t, tr.Advance(StateItemsCommitted))
	assert.Error(t, tr.Advance(StateRolledBack))
	assert.Equal(t, StateItemsCommitted, tr.State())
}
