package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	catalogapp "github.com/jcmexdev/mebel-storefront/internal/catalog-service/app"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
)

type CatalogService interface {
	ListProducts(ctx context.Context, f domain.ProductFilter, page, pageSize int) (catalogapp.ProductPage, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	Sitemap(ctx context.Context, baseURL string) ([]byte, error)
}

type CatalogHandler struct {
	catalog     CatalogService
	siteBaseURL string
}

func NewCatalogHandler(catalog CatalogService, siteBaseURL string) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, siteBaseURL: siteBaseURL}
}

// ListProducts supports ?category=, ?search=, ?in_stock=true, ?page= and
// ?page_size=. Inactive products are never listed.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.ProductFilter{
		CategoryID:  q.Get("category"),
		Search:      q.Get("search"),
		InStockOnly: queryBool(q.Get("in_stock")),
	}
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("page_size"))

	res, err := h.catalog.ListProducts(r.Context(), f, page, pageSize)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := ProductListResponse{
		Products: make([]ProductResponse, len(res.Products)),
		Total:    res.Total,
		Page:     res.Page,
		PageSize: res.PageSize,
	}
	for i, p := range res.Products {
		out.Products[i] = mapProduct(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapProduct(p))
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		out[i] = CategoryResponse{ID: c.ID, NameRU: c.NameRU, NameUZ: c.NameUZ, Slug: c.Slug}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	body, err := h.catalog.Sitemap(r.Context(), h.siteBaseURL)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func queryBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
