package ports

import (
	"context"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
)

// ProductRepository is the trusted source of catalog prices and availability.
type ProductRepository interface {
	// GetByIDs returns the products that exist among ids in a single batched read.
	// Missing ids are simply absent from the result.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
}

// OrderRepository exposes the primitive writes the order saga is built from.
// The store offers no cross-table transaction at this layer.
type OrderRepository interface {
	// InsertOrder writes the header under order.ID, generating an id when it
	// is empty, and returns the stored id.
	// A clash on a non-empty idempotency key returns domain.ErrDuplicateKey.
	InsertOrder(ctx context.Context, order *domain.Order) (string, error)
	// InsertOrderItems writes every item in one batch; it either fully succeeds or fails.
	InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error
	DeleteOrder(ctx context.Context, orderID string) error

	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// FindByNumber returns every order carrying number, oldest first. Order
	// numbers are only unique per day with high probability.
	FindByNumber(ctx context.Context, number string) ([]*domain.Order, error)
	// UpdateStatus sets next on the order with id only while it is still at
	// expected, and reports whether a row changed.
	UpdateStatus(ctx context.Context, id string, expected, next domain.OrderStatus) (bool, error)
}

type SettingsRepository interface {
	GetTelegramSettings(ctx context.Context) (domain.TelegramSettings, error)
	SaveTelegramSettings(ctx context.Context, s domain.TelegramSettings) error
}

// OrderSummary is what the notifier needs to describe a freshly created order.
type OrderSummary struct {
	OrderNumber     string             `json:"order_number"`
	CustomerName    string             `json:"customer_name"`
	CustomerPhone   string             `json:"customer_phone"`
	CustomerMessage string             `json:"customer_message,omitempty"`
	TotalPrice      string             `json:"total_price"`
	Items           []OrderSummaryItem `json:"items"`
}

type OrderSummaryItem struct {
	Name            string                 `json:"name"`
	Quantity        int                    `json:"quantity"`
	LinePrice       string                 `json:"line_price"`
	SelectedOptions domain.SelectedOptions `json:"selected_options"`
}

// Dispatcher hands a summary to the notification channel. Implementations must not
// block on delivery and must not report delivery failures to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, summary OrderSummary)
}

func SummaryFromOrder(o *domain.Order) OrderSummary {
	items := make([]OrderSummaryItem, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderSummaryItem{
			Name:            it.ProductName,
			Quantity:        it.Quantity,
			LinePrice:       it.Subtotal().String(),
			SelectedOptions: it.SelectedOptions,
		}
	}
	return OrderSummary{
		OrderNumber:     o.OrderNumber,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		CustomerMessage: o.CustomerMessage,
		TotalPrice:      o.TotalPrice.String(),
		Items:           items,
	}
}
