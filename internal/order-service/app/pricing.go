package app

import (
	"context"
	"fmt"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

// PriceAuthority resolves authoritative prices and availability. Prices submitted by
// clients never reach it.
type PriceAuthority struct {
	products ports.ProductRepository
}

func NewPriceAuthority(products ports.ProductRepository) *PriceAuthority {
	return &PriceAuthority{products: products}
}

// Resolve loads every id in one batched read and returns the products keyed by id.
func (p *PriceAuthority) Resolve(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	rows, err := p.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("none of %d products exist: %w", len(ids), domain.ErrNotFound)
	}

	byID := make(map[string]domain.Product, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, &domain.ProductError{ProductID: id, Err: domain.ErrNotFound}
		}
	}

	for _, id := range ids {
		if prod := byID[id]; !prod.IsActive {
			return nil, &domain.ProductError{ProductID: id, Name: prod.DisplayName(), Err: domain.ErrProductUnavailable}
		}
	}

	return byID, nil
}
