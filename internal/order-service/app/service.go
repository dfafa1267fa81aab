package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/mebel-storefront/internal/coordinator"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

const tracerName = "github.com/jcmexdev/mebel-storefront/internal/order-service"

// OrderWriter persists an assembled order. coordinator.OrderWriter is the production one.
type OrderWriter interface {
	Write(ctx context.Context, order *domain.Order) (coordinator.WriteResult, error)
}

// CreateOrderResult is what the caller sees after a successful order creation.
type CreateOrderResult struct {
	OrderID     string
	OrderNumber string
	TotalPrice  decimal.Decimal
	// Replayed is set when the idempotency key matched an existing order.
	Replayed bool
}

// Service runs the order pipeline: validate, price, assemble, write, notify.
type Service struct {
	prices     *PriceAuthority
	assembler  *Assembler
	writer     OrderWriter
	orders     ports.OrderRepository
	dispatcher ports.Dispatcher
	tracer     trace.Tracer
}

func NewService(
	products ports.ProductRepository,
	orders ports.OrderRepository,
	writer OrderWriter,
	dispatcher ports.Dispatcher,
) *Service {
	return &Service{
		prices:     NewPriceAuthority(products),
		assembler:  NewAssembler(),
		writer:     writer,
		orders:     orders,
		dispatcher: dispatcher,
		tracer:     otel.Tracer(tracerName),
	}
}

// CreateOrder validates the untrusted input, recomputes prices from the store,
// writes the order and hands a summary to the dispatcher. Dispatch outcome never
// affects the returned result.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "order.create")
	defer span.End()

	res, err := s.createOrder(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return CreateOrderResult{}, err
	}
	span.SetAttributes(
		attribute.String("order.number", res.OrderNumber),
		attribute.Bool("order.replayed", res.Replayed),
	)
	return res, nil
}

func (s *Service) createOrder(ctx context.Context, in CreateOrderInput) (CreateOrderResult, error) {
	req, err := ValidateRequest(in)
	if err != nil {
		return CreateOrderResult{}, err
	}

	if req.IdempotencyKey != "" {
		if res, ok, err := s.replay(ctx, req.IdempotencyKey); err != nil || ok {
			return res, err
		}
	}

	pctx, pspan := s.tracer.Start(ctx, "order.resolve_prices")
	products, err := s.prices.Resolve(pctx, req.ProductIDs())
	pspan.End()
	if err != nil {
		return CreateOrderResult{}, err
	}

	order := s.assembler.Assemble(req, products)

	// The write saga must finish even if the client goes away, or a header could
	// be left without items and without compensation.
	wctx, wspan := s.tracer.Start(context.WithoutCancel(ctx), "order.write")
	written, err := s.writer.Write(wctx, order)
	wspan.SetAttributes(attribute.String("order.write_state", string(written.State)))
	wspan.End()
	if errors.Is(err, domain.ErrDuplicateKey) {
		// Lost a race against a concurrent request carrying the same key.
		res, ok, rerr := s.replay(ctx, req.IdempotencyKey)
		if rerr != nil {
			return CreateOrderResult{}, rerr
		}
		if ok {
			return res, nil
		}
		return CreateOrderResult{}, &domain.PersistenceError{Stage: coordinator.StepInsertOrderHeader, Err: err}
	}
	if err != nil {
		slog.ErrorContext(ctx, "order write failed",
			"order_number", order.OrderNumber, "write_state", written.State, "error", err)
		return CreateOrderResult{}, err
	}

	slog.InfoContext(ctx, "order created",
		"order_number", order.OrderNumber,
		"order_id", written.OrderID,
		"items_count", len(order.Items),
		"total_price", order.TotalPrice.String(),
	)

	s.dispatcher.Dispatch(ctx, ports.SummaryFromOrder(order))

	return CreateOrderResult{
		OrderID:     written.OrderID,
		OrderNumber: order.OrderNumber,
		TotalPrice:  order.TotalPrice,
	}, nil
}

func (s *Service) replay(ctx context.Context, key string) (CreateOrderResult, bool, error) {
	existing, err := s.orders.FindByIdempotencyKey(ctx, key)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return CreateOrderResult{}, false, nil
	}
	if err != nil {
		return CreateOrderResult{}, false, &domain.PersistenceError{Stage: "idempotency_lookup", Err: err}
	}
	slog.InfoContext(ctx, "replaying order for idempotency key", "order_number", existing.OrderNumber)
	return CreateOrderResult{
		OrderID:     existing.ID,
		OrderNumber: existing.OrderNumber,
		TotalPrice:  existing.TotalPrice,
		Replayed:    true,
	}, true, nil
}

// GetOrder returns an order with its items.
func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return order, nil
}

// FindOrders lists every order sharing a customer-facing number.
func (s *Service) FindOrders(ctx context.Context, number string) ([]*domain.Order, error) {
	orders, err := s.orders.FindByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("find orders %s: %w", number, err)
	}
	return orders, nil
}

// UpdateStatus moves an order along the staff-owned lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, &domain.TransitionError{From: order.Status, To: next}
	}

	ok, err := s.orders.UpdateStatus(ctx, order.ID, order.Status, next)
	if err != nil {
		return nil, &domain.PersistenceError{Stage: "update_status", Err: err}
	}
	if !ok {
		// Changed concurrently since it was read.
		return nil, &domain.TransitionError{From: order.Status, To: next}
	}

	slog.InfoContext(ctx, "order status changed",
		"order_id", order.ID, "order_number", order.OrderNumber, "from", order.Status, "to", next)
	order.Status = next
	return order, nil
}
