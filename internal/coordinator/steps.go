package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

const (
	StepInsertOrderHeader = "Insert_Order_Header_Step"
	StepInsertOrderItems  = "Insert_Order_Items_Step"
)

// --- InsertOrderHeaderStep ---

type InsertOrderHeaderStep struct {
	repo     ports.OrderRepository
	order    *domain.Order
	tracker  *WriteTracker
	inserted bool
}

func NewInsertOrderHeaderStep(repo ports.OrderRepository, order *domain.Order, tracker *WriteTracker) *InsertOrderHeaderStep {
	return &InsertOrderHeaderStep{repo: repo, order: order, tracker: tracker}
}

func (s *InsertOrderHeaderStep) Name() string { return StepInsertOrderHeader }

func (s *InsertOrderHeaderStep) Execute(ctx context.Context) error {
	s.order.Status = domain.StatusNew
	id, err := s.repo.InsertOrder(ctx, s.order)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return err
		}
		return fmt.Errorf("insert order header: %w", err)
	}
	s.order.ID = id
	s.inserted = true
	return s.tracker.Advance(StateHeaderCommitted)
}

// Compensate removes the header so no order is left without line items.
func (s *InsertOrderHeaderStep) Compensate(ctx context.Context) error {
	if !s.inserted {
		return nil
	}
	if err := s.repo.DeleteOrder(ctx, s.order.ID); err != nil {
		return fmt.Errorf("delete order header %s: %w", s.order.ID, err)
	}
	return s.tracker.Advance(StateRolledBack)
}

// --- InsertOrderItemsStep ---

type InsertOrderItemsStep struct {
	repo    ports.OrderRepository
	order   *domain.Order
	tracker *WriteTracker
}

func NewInsertOrderItemsStep(repo ports.OrderRepository, order *domain.Order, tracker *WriteTracker) *InsertOrderItemsStep {
	return &InsertOrderItemsStep{repo: repo, order: order, tracker: tracker}
}

func (s *InsertOrderItemsStep) Name() string { return StepInsertOrderItems }

func (s *InsertOrderItemsStep) Execute(ctx context.Context) error {
	for i := range s.order.Items {
		s.order.Items[i].OrderID = s.order.ID
	}
	if err := s.repo.InsertOrderItems(ctx, s.order.ID, s.order.Items); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return s.tracker.Advance(StateItemsCommitted)
}

func (s *InsertOrderItemsStep) Compensate(ctx context.Context) error {
	// Last step: the batch insert is all-or-nothing, so a failure leaves nothing to undo.
	return nil
}
