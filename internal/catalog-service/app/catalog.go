// Package app serves read-only catalog listings and the sitemap.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*pageSize far from int overflow.
	MaxPage = 10000
)

type Repository interface {
	ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

type ProductPage struct {
	Products []domain.Product
	Total    int
	Page     int
	PageSize int
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListProducts returns one page of active products. page is 1-based;
// out-of-range paging values are clamped.
func (s *Service) ListProducts(ctx context.Context, f domain.ProductFilter, page, pageSize int) (ProductPage, error) {
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	f.ActiveOnly = true
	f.Search = strings.TrimSpace(f.Search)
	f.Limit = pageSize
	f.Offset = (page - 1) * pageSize

	products, total, err := s.repo.ListProducts(ctx, f)
	if err != nil {
		return ProductPage{}, err
	}
	return ProductPage{Products: products, Total: total, Page: page, PageSize: pageSize}, nil
}

// GetProduct returns domain.ErrNotFound for inactive products too.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if !p.IsActive {
		return domain.Product{}, fmt.Errorf("product %s is inactive: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx)
}
