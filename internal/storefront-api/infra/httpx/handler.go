package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/app"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/i18n"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/interceptors/constants"
)

const maxBodyBytes = 1 << 20

type OrderService interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (app.CreateOrderResult, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	FindOrders(ctx context.Context, number string) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (*domain.Order, error)
}

// Handler serves the public order endpoint.
type Handler struct {
	orders OrderService
}

func NewHandler(orders OrderService) *Handler {
	return &Handler{orders: orders}
}

// CreateOrder runs the order pipeline for one storefront checkout.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, i18n.MalformedBody)
		return
	}

	items := make([]app.ItemInput, len(req.Items))
	for i, it := range req.Items {
		items[i] = app.ItemInput{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			SelectedOptions: it.SelectedOptions,
		}
	}

	idempKey, _ := r.Context().Value(constants.ContextKeyIdempotencyKey).(string)
	requestID, _ := r.Context().Value(constants.ContextKeyRequestID).(string)
	slog.InfoContext(r.Context(), "creating order", "request_id", requestID, "items_count", len(items))

	res, err := h.orders.CreateOrder(r.Context(), app.CreateOrderInput{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerMessage: req.CustomerMessage,
		Items:           items,
		IdempotencyKey:  idempKey,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrPersistence) {
			slog.InfoContext(r.Context(), "order rejected", "request_id", requestID, "error", err)
		}
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CreateOrderResponse{
		Success:     true,
		OrderID:     res.OrderID,
		OrderNumber: res.OrderNumber,
		TotalPrice:  json.Number(res.TotalPrice.String()),
		Replayed:    res.Replayed,
	})
}
