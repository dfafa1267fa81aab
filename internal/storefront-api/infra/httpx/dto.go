package httpx

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
)

type CreateOrderRequest struct {
	CustomerName    string               `json:"customer_name"`
	CustomerPhone   string               `json:"customer_phone"`
	CustomerMessage string               `json:"customer_message"`
	Items           []CreateOrderItemDTO `json:"items"`
}

// CreateOrderItemDTO ignores any client-sent price; only the id, quantity and
// options are read.
type CreateOrderItemDTO struct {
	ProductID       string                 `json:"product_id"`
	Quantity        float64                `json:"quantity"`
	SelectedOptions domain.SelectedOptions `json:"selected_options"`
}

type CreateOrderResponse struct {
	Success     bool        `json:"success"`
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	TotalPrice  json.Number `json:"total_price"`
	Replayed    bool        `json:"replayed,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type OrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone"`
	CustomerMessage string              `json:"customer_message,omitempty"`
	TotalPrice      json.Number         `json:"total_price"`
	Status          string              `json:"status"`
	Items           []OrderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
}

type OrderItemResponse struct {
	ProductID       string                 `json:"product_id"`
	ProductName     string                 `json:"product_name"`
	PriceSnapshot   json.Number            `json:"price_snapshot"`
	Quantity        int                    `json:"quantity"`
	SelectedOptions domain.SelectedOptions `json:"selected_options"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type ProductResponse struct {
	ID         string       `json:"id"`
	NameRU     string       `json:"name_ru,omitempty"`
	NameUZ     string       `json:"name_uz,omitempty"`
	Price      *json.Number `json:"price"`
	IsActive   bool         `json:"is_active"`
	InStock    bool         `json:"in_stock"`
	CategoryID string       `json:"category_id,omitempty"`
	Slug       string       `json:"slug,omitempty"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

type CategoryResponse struct {
	ID     string `json:"id"`
	NameRU string `json:"name_ru,omitempty"`
	NameUZ string `json:"name_uz,omitempty"`
	Slug   string `json:"slug,omitempty"`
}

type TelegramSettingsDTO struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
	Enabled  bool   `json:"enabled"`
}

type SendTelegramRequest struct {
	Text string `json:"text"`
}

func mapOrderToResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			PriceSnapshot:   json.Number(it.PriceSnapshot.String()),
			Quantity:        it.Quantity,
			SelectedOptions: it.SelectedOptions,
		}
	}
	return OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		CustomerMessage: o.CustomerMessage,
		TotalPrice:      json.Number(o.TotalPrice.String()),
		Status:          string(o.Status),
		Items:           items,
		CreatedAt:       o.CreatedAt,
	}
}

func mapProduct(p domain.Product) ProductResponse {
	out := ProductResponse{
		ID:         p.ID,
		NameRU:     p.NameRU,
		NameUZ:     p.NameUZ,
		IsActive:   p.IsActive,
		InStock:    p.InStock,
		CategoryID: p.CategoryID,
		Slug:       p.Slug,
		UpdatedAt:  p.UpdatedAt,
	}
	if p.Price.Valid {
		n := json.Number(p.Price.Decimal.String())
		out.Price = &n
	}
	return out
}

// maskToken shows only the bot id part of a token ("123456:***").
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if id, _, ok := strings.Cut(token, ":"); ok {
		return id + ":***"
	}
	return "***"
}
