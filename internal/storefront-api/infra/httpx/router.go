package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/mebel-storefront/internal/pkg/i18n"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/interceptors/constants"
	"github.com/jcmexdev/mebel-storefront/internal/storefront-api/infra/httpx/middlewares"
)

type RouterDeps struct {
	Orders       *Handler
	Catalog      *CatalogHandler
	Admin        *AdminHandler
	DB           Pinger
	AdminAPIKeys []string
	Logger       *slog.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewares.AttachRequestMetadata)
	r.Use(middlewares.Logger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Authorization", "Content-Type",
			constants.HeaderXAPIKey, constants.HeaderXIdempotencyKey, constants.HeaderXRequestId},
		ExposedHeaders: []string{constants.HeaderXRequestId},
		MaxAge:         300,
	}))

	r.Get("/health", Health(d.DB))
	r.Get("/sitemap.xml", d.Catalog.Sitemap)

	r.Route("/api", func(r chi.Router) {
		r.Post("/orders", d.Orders.CreateOrder)
		r.Post("/create-order", d.Orders.CreateOrder)

		r.Get("/products", d.Catalog.ListProducts)
		r.Get("/products/{id}", d.Catalog.GetProduct)
		r.Get("/categories", d.Catalog.ListCategories)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewares.APIKeyAuth(d.AdminAPIKeys, func(w http.ResponseWriter, r *http.Request) {
				writeMessage(w, r, http.StatusUnauthorized, i18n.Unauthorized)
			}))
			r.Get("/orders", d.Admin.FindOrders)
			r.Get("/orders/{id}", d.Admin.GetOrder)
			r.Get("/orders/{id}/history", d.Admin.OrderHistory)
			r.Patch("/orders/{id}/status", d.Admin.UpdateOrderStatus)
			r.Get("/settings/telegram", d.Admin.GetTelegramSettings)
			r.Put("/settings/telegram", d.Admin.PutTelegramSettings)
			r.Post("/notifications/telegram", d.Admin.SendTelegram)
		})
	})

	return otelhttp.NewHandler(r, "storefront-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
