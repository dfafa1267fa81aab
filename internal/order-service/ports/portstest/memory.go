// Package portstest provides in-memory implementations of the order ports with
// fault injection, for tests.
package portstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

var ErrInjected = errors.New("injected store fault")

var (
	_ ports.ProductRepository  = (*Products)(nil)
	_ ports.OrderRepository    = (*Orders)(nil)
	_ ports.SettingsRepository = (*Settings)(nil)
)

type Products struct {
	mu    sync.Mutex
	items map[string]domain.Product
	Calls int
	Err   error
}

func NewProducts(products ...domain.Product) *Products {
	p := &Products{items: make(map[string]domain.Product)}
	for _, prod := range products {
		p.items[prod.ID] = prod
	}
	return p
}

func (p *Products) GetByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	if p.Err != nil {
		return nil, p.Err
	}
	var out []domain.Product
	for _, id := range ids {
		if prod, ok := p.items[id]; ok {
			out = append(out, prod)
		}
	}
	return out, nil
}

// Orders keeps headers and items in maps. Fail* flags inject faults per operation.
type Orders struct {
	mu         sync.Mutex
	headers    map[string]domain.Order
	items      map[string][]domain.OrderItem
	FailHeader bool
	FailItems  bool
	FailDelete bool
	Deleted    []string
}

func NewOrders() *Orders {
	return &Orders{
		headers: make(map[string]domain.Order),
		items:   make(map[string][]domain.OrderItem),
	}
}

func (o *Orders) InsertOrder(_ context.Context, order *domain.Order) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.FailHeader {
		return "", ErrInjected
	}
	if order.IdempotencyKey != "" {
		for _, h := range o.headers {
			if h.IdempotencyKey == order.IdempotencyKey {
				return "", domain.ErrDuplicateKey
			}
		}
	}
	id := order.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, taken := o.headers[id]; taken {
		return "", fmt.Errorf("order id %s already stored", id)
	}
	h := *order
	h.ID = id
	h.Items = nil
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	o.headers[id] = h
	return id, nil
}

func (o *Orders) InsertOrderItems(_ context.Context, orderID string, items []domain.OrderItem) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.FailItems {
		return ErrInjected
	}
	stored := make([]domain.OrderItem, len(items))
	for i, it := range items {
		it.ID = uuid.NewString()
		it.OrderID = orderID
		stored[i] = it
	}
	o.items[orderID] = append(o.items[orderID], stored...)
	return nil
}

func (o *Orders) DeleteOrder(_ context.Context, orderID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.FailDelete {
		return ErrInjected
	}
	delete(o.headers, orderID)
	delete(o.items, orderID)
	o.Deleted = append(o.Deleted, orderID)
	return nil
}

func (o *Orders) FindByIdempotencyKey(_ context.Context, key string) (*domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, h := range o.headers {
		if h.IdempotencyKey == key {
			return o.withItems(id, h), nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (o *Orders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.headers[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.withItems(id, h), nil
}

func (o *Orders) FindByNumber(_ context.Context, number string) ([]*domain.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []*domain.Order
	for id, h := range o.headers {
		if h.OrderNumber == number {
			out = append(out, o.withItems(id, h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (o *Orders) UpdateStatus(_ context.Context, id string, expected, next domain.OrderStatus) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.headers[id]
	if !ok || h.Status != expected {
		return false, nil
	}
	h.Status = next
	o.headers[id] = h
	return true, nil
}

func (o *Orders) HeaderCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.headers)
}

func (o *Orders) Header(id string) (domain.Order, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.headers[id]
	return h, ok
}

func (o *Orders) Items(orderID string) []domain.OrderItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.OrderItem(nil), o.items[orderID]...)
}

func (o *Orders) withItems(id string, h domain.Order) *domain.Order {
	h.Items = append([]domain.OrderItem(nil), o.items[id]...)
	return &h
}

type Settings struct {
	mu       sync.Mutex
	settings domain.TelegramSettings
	Reads    int
	Err      error
}

func NewSettings(s domain.TelegramSettings) *Settings {
	return &Settings{settings: s}
}

func (s *Settings) GetTelegramSettings(context.Context) (domain.TelegramSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reads++
	if s.Err != nil {
		return domain.TelegramSettings{}, s.Err
	}
	return s.settings, nil
}

func (s *Settings) SaveTelegramSettings(_ context.Context, ts domain.TelegramSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = ts
	return nil
}

func (s *Settings) ReadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Reads
}

// Dispatcher records summaries instead of delivering them.
type Dispatcher struct {
	mu        sync.Mutex
	summaries []ports.OrderSummary
}

func (d *Dispatcher) Dispatch(_ context.Context, s ports.OrderSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.summaries = append(d.summaries, s)
}

func (d *Dispatcher) Summaries() []ports.OrderSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ports.OrderSummary(nil), d.summaries...)
}
