package app

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
)

const orderNumberPrefix = "ORD"

// Assembler builds the order record from a validated request and authoritative
// products. Clock and random source are injected so output is reproducible in tests.
type Assembler struct {
	now    func() time.Time
	suffix func() int
}

func NewAssembler() *Assembler {
	return &Assembler{
		now:    time.Now,
		suffix: func() int { return rand.Intn(10000) },
	}
}

// Assemble expects products to contain every requested id (see PriceAuthority.Resolve).
func (a *Assembler) Assemble(req domain.OrderRequest, products map[string]domain.Product) *domain.Order {
	now := a.now().UTC()

	total := decimal.Zero
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		prod := products[it.ProductID]
		item := domain.OrderItem{
			ProductID:       it.ProductID,
			ProductName:     prod.DisplayName(),
			PriceSnapshot:   prod.AuthoritativePrice(),
			Quantity:        it.Quantity,
			SelectedOptions: it.SelectedOptions,
		}
		total = total.Add(item.Subtotal())
		items = append(items, item)
	}

	return &domain.Order{
		OrderNumber:     a.orderNumber(now),
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerMessage: req.CustomerMessage,
		TotalPrice:      total,
		Status:          domain.StatusNew,
		IdempotencyKey:  req.IdempotencyKey,
		Items:           items,
		CreatedAt:       now,
	}
}

// orderNumber is a human-readable reference, not a key: uniqueness is best-effort.
func (a *Assembler) orderNumber(t time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", orderNumberPrefix, t.Format("20060102"), a.suffix()%10000)
}
