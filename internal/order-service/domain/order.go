package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownProductName labels a line item whose product has no localized name.
const UnknownProductName = "Unknown"

type SelectedOptions struct {
	Size  string `json:"size,omitempty"`
	Color string `json:"color,omitempty"`
}

func (o SelectedOptions) IsEmpty() bool {
	return o.Size == "" && o.Color == ""
}

// OrderRequest is a validated, normalized order payload.
type OrderRequest struct {
	CustomerName    string
	CustomerPhone   string
	CustomerMessage string
	Items           []RequestItem
	IdempotencyKey  string
}

type RequestItem struct {
	ProductID       string
	Quantity        int
	SelectedOptions SelectedOptions
}

// ProductIDs returns the referenced product ids in request order, without duplicates.
func (r OrderRequest) ProductIDs() []string {
	seen := make(map[string]struct{}, len(r.Items))
	ids := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

type Order struct {
	ID              string
	OrderNumber     string
	CustomerName    string
	CustomerPhone   string
	CustomerMessage string
	TotalPrice      decimal.Decimal
	Status          OrderStatus
	IdempotencyKey  string
	Items           []OrderItem
	CreatedAt       time.Time
}

// OrderItem is a line item. ProductName and PriceSnapshot are captured when the
// order is created and never rewritten.
type OrderItem struct {
	ID              string
	OrderID         string
	ProductID       string
	ProductName     string
	PriceSnapshot   decimal.Decimal
	Quantity        int
	SelectedOptions SelectedOptions
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceSnapshot.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type OrderStatus string

const (
	StatusNew        OrderStatus = "new"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusNew:        {StatusProcessing, StatusCancelled, StatusCompleted},
	StatusProcessing: {StatusCompleted, StatusCancelled},
}

func ParseStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case StatusNew, StatusProcessing, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

// CanTransitionTo reports whether staff tooling may move an order from s to next.
// Completed and cancelled are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
