package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	catalogapp "github.com/jcmexdev/mebel-storefront/internal/catalog-service/app"
	"github.com/jcmexdev/mebel-storefront/internal/coordinator"
	"github.com/jcmexdev/mebel-storefront/internal/coordinator/sagalog"
	sagasqlite "github.com/jcmexdev/mebel-storefront/internal/coordinator/sagalog/sqlite"
	"github.com/jcmexdev/mebel-storefront/internal/notifier"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/app"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/cache"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/i18n"
	"github.com/jcmexdev/mebel-storefront/internal/pkg/store/sqlite"
)

const adminKey = "test-admin-key"

type recordingSender struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *recordingSender) SendMessage(_ context.Context, _, _, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}

func (s *recordingSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// failingItems breaks the second write so the header has to be compensated.
type failingItems struct {
	ports.OrderRepository
}

func (failingItems) InsertOrderItems(context.Context, string, []domain.OrderItem) error {
	return errors.New("disk full")
}

type testServer struct {
	store      *sqlite.Store
	sender     *recordingSender
	settings   *notifier.CachedSettings
	dispatcher *notifier.AsyncDispatcher
	handler    http.Handler
}

func newTestServer(t *testing.T, wrap func(ports.OrderRepository) ports.OrderRepository) *testServer {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	require.NoError(t, store.UpsertCategory(ctx, domain.Category{ID: "sofas", NameRU: "Диваны", Slug: "sofas"}))
	for _, p := range []domain.Product{
		{ID: "P1", NameRU: "Диван Честер", Price: decimal.NewNullDecimal(decimal.NewFromInt(150000)), IsActive: true, InStock: true, CategoryID: "sofas", Slug: "chester"},
		{ID: "P2", NameUZ: "Kreslo", Price: decimal.NewNullDecimal(decimal.NewFromInt(70000)), IsActive: true, InStock: true},
		{ID: "OFF", NameRU: "Старый шкаф", Price: decimal.NewNullDecimal(decimal.NewFromInt(1)), IsActive: false},
	} {
		require.NoError(t, store.UpsertProduct(ctx, p))
	}
	require.NoError(t, store.SaveTelegramSettings(ctx, domain.TelegramSettings{BotToken: "123:secret", ChatID: "-100", Enabled: true}))

	var orders ports.OrderRepository = store
	if wrap != nil {
		orders = wrap(store)
	}

	ts := &testServer{store: store, sender: &recordingSender{}}
	ts.settings = notifier.NewCachedSettings(notifier.NewStoreSettings(store), cache.NewMemory(4, time.Minute), time.Minute)
	n := notifier.New(ts.settings, ts.sender, i18n.Printer(language.Russian))
	ts.dispatcher = notifier.NewAsyncDispatcher(n, time.Second)

	sagaLog, err := sagasqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sagaLog.Close() })

	svc := app.NewService(store, orders, coordinator.NewOrderWriter(orders, sagaLog), ts.dispatcher)
	ts.handler = NewRouter(RouterDeps{
		Orders:       NewHandler(svc),
		Catalog:      NewCatalogHandler(catalogapp.NewService(store), "https://mebel.example"),
		Admin:        NewAdminHandler(svc, store, ts.settings, n, sagaLog),
		DB:           store,
		AdminAPIKeys: []string{adminKey},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return ts
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) orderCount(t *testing.T) int {
	t.Helper()
	n, err := ts.store.CountOrders(context.Background())
	require.NoError(t, err)
	return n
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const validOrder = `{
	"customer_name": "Aziz Aliyev",
	"customer_phone": "+998901234567",
	"customer_message": "Позвоните после 18:00",
	"items": [
		{"product_id": "P1", "quantity": 2, "price": 1, "selected_options": {"size": "L", "color": "grey"}},
		{"product_id": "P2", "quantity": 1}
	]
}`

func TestCreateOrder_Success(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/orders", validOrder, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[CreateOrderResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Regexp(t, `^ORD-\d{8}-\d{4}$`, resp.OrderNumber)
	// The client-sent price is ignored.
	assert.Equal(t, json.Number("370000"), resp.TotalPrice)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	require.NotEmpty(t, resp.OrderID)
	order, err := ts.store.GetByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, resp.OrderNumber, order.OrderNumber)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, domain.StatusNew, order.Status)

	ts.dispatcher.Wait()
	sent := ts.sender.sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], resp.OrderNumber)
}

func TestCreateOrder_LegacyPath(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/create-order", validOrder, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	ts.dispatcher.Wait()
}

func TestCreateOrder_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		lang     string
		headers  map[string]string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "phone without country prefix",
			body:     `{"customer_name":"Aziz","customer_phone":"901234567","items":[{"product_id":"P1","quantity":1}]}`,
			lang:     "en",
			wantCode: http.StatusBadRequest,
			wantMsg:  "Phone number must be in the +998XXXXXXXXX format",
		},
		{
			name:     "short name in russian by default",
			body:     `{"customer_name":" A ","customer_phone":"+998901234567","items":[{"product_id":"P1","quantity":1}]}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "Имя должно содержать не менее 2 символов",
		},
		{
			name:     "fractional quantity",
			body:     `{"customer_name":"Aziz","customer_phone":"+998901234567","items":[{"product_id":"P1","quantity":1.5}]}`,
			lang:     "en",
			wantCode: http.StatusBadRequest,
			wantMsg:  "Quantity must be a whole number between 1 and 100",
		},
		{
			name:     "unknown product",
			body:     `{"customer_name":"Aziz","customer_phone":"+998901234567","items":[{"product_id":"NOPE","quantity":1}]}`,
			lang:     "en",
			wantCode: http.StatusNotFound,
			wantMsg:  "Product not found",
		},
		{
			name:     "inactive product named in message",
			body:     `{"customer_name":"Aziz","customer_phone":"+998901234567","items":[{"product_id":"OFF","quantity":1}]}`,
			wantCode: http.StatusBadRequest,
			wantMsg:  "Товар «Старый шкаф» недоступен для заказа",
		},
		{
			name:     "oversized idempotency key",
			body:     validOrder,
			lang:     "en",
			headers:  map[string]string{"X-Idempotency-Key": strings.Repeat("k", 129)},
			wantCode: http.StatusBadRequest,
			wantMsg:  "Idempotency key is longer than 128 characters",
		},
		{
			name:     "malformed json",
			body:     `{"customer_name":`,
			lang:     "uz",
			wantCode: http.StatusBadRequest,
			wantMsg:  "Noto'g'ri so'rov",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)

			path := "/api/orders"
			if tt.lang != "" {
				path += "?lang=" + tt.lang
			}
			rec := ts.do(http.MethodPost, path, tt.body, tt.headers)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeBody[ErrorResponse](t, rec).Error)

			assert.Zero(t, ts.orderCount(t))
			ts.dispatcher.Wait()
			assert.Empty(t, ts.sender.sent())
		})
	}
}

func TestCreateOrder_AcceptLanguage(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/orders",
		`{"customer_name":"Aziz","customer_phone":"+998901234567","items":[]}`,
		map[string]string{"Accept-Language": "uz-UZ,uz;q=0.9"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Savat bo'sh", decodeBody[ErrorResponse](t, rec).Error)
}

func TestCreateOrder_PersistenceFailureIsCompensated(t *testing.T) {
	ts := newTestServer(t, func(repo ports.OrderRepository) ports.OrderRepository {
		return failingItems{OrderRepository: repo}
	})

	rec := ts.do(http.MethodPost, "/api/orders?lang=en", validOrder, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	msg := decodeBody[ErrorResponse](t, rec).Error
	assert.Equal(t, "Could not place the order. Please try again", msg)
	assert.NotContains(t, msg, "disk full")

	assert.Zero(t, ts.orderCount(t), "the header must be rolled back")
	ts.dispatcher.Wait()
	assert.Empty(t, ts.sender.sent())
}

func TestCreateOrder_NotificationFailureStillSucceeds(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.sender.err = errors.New("telegram down")

	rec := ts.do(http.MethodPost, "/api/orders", validOrder, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[CreateOrderResponse](t, rec).Success)

	ts.dispatcher.Wait()
	assert.Len(t, ts.sender.sent(), 1)
	assert.Equal(t, 1, ts.orderCount(t))
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	ts := newTestServer(t, nil)
	headers := map[string]string{"X-Idempotency-Key": "checkout-42"}

	first := ts.do(http.MethodPost, "/api/orders", validOrder, headers)
	require.Equal(t, http.StatusOK, first.Code)
	second := ts.do(http.MethodPost, "/api/orders", validOrder, headers)
	require.Equal(t, http.StatusOK, second.Code)

	a := decodeBody[CreateOrderResponse](t, first)
	b := decodeBody[CreateOrderResponse](t, second)
	assert.Equal(t, a.OrderID, b.OrderID)
	assert.Equal(t, a.OrderNumber, b.OrderNumber)
	assert.Equal(t, a.TotalPrice, b.TotalPrice)
	assert.False(t, a.Replayed)
	assert.True(t, b.Replayed)

	assert.Equal(t, 1, ts.orderCount(t))
	ts.dispatcher.Wait()
	assert.Len(t, ts.sender.sent(), 1, "a replay does not notify again")
}

func TestAdmin_RequiresAPIKey(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/admin/settings/telegram?lang=en", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authorization required", decodeBody[ErrorResponse](t, rec).Error)

	rec = ts.do(http.MethodGet, "/api/admin/settings/telegram", "", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/admin/settings/telegram", "", map[string]string{"Authorization": "Bearer " + adminKey})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_OrderStatusLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := map[string]string{"X-API-Key": adminKey}

	created := decodeBody[CreateOrderResponse](t, ts.do(http.MethodPost, "/api/orders", validOrder, nil))
	ts.dispatcher.Wait()

	rec := ts.do(http.MethodGet, "/api/admin/orders/"+created.OrderID, "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	order := decodeBody[OrderResponse](t, rec)
	assert.Equal(t, "new", order.Status)
	assert.Len(t, order.Items, 2)

	rec = ts.do(http.MethodGet, "/api/admin/orders/"+created.OrderID+"/history", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]sagalog.Entry](t, rec)
	require.NotEmpty(t, history)
	assert.Equal(t, sagalog.StatusStarted, history[0].Status)
	assert.Equal(t, sagalog.StatusCompleted, history[len(history)-1].Status)

	rec = ts.do(http.MethodPatch, "/api/admin/orders/"+created.OrderID+"/status", `{"status":"processing"}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "processing", decodeBody[OrderResponse](t, rec).Status)

	rec = ts.do(http.MethodPatch, "/api/admin/orders/"+created.OrderID+"/status?lang=en", `{"status":"new"}`, auth)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, `Cannot move an order from "processing" to "new"`, decodeBody[ErrorResponse](t, rec).Error)

	rec = ts.do(http.MethodPatch, "/api/admin/orders/"+created.OrderID+"/status", `{"status":"shipped"}`, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/admin/orders/00000000-0000-0000-0000-000000000000", "", auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/admin/orders?number="+created.OrderNumber, "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decodeBody[[]OrderResponse](t, rec)
	require.Len(t, found, 1)
	assert.Equal(t, created.OrderID, found[0].ID)

	rec = ts.do(http.MethodGet, "/api/admin/orders?lang=en", "", auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Order number is missing", decodeBody[ErrorResponse](t, rec).Error)
}

func TestAdmin_SharedOrderNumberChangesOneOrder(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := map[string]string{"X-API-Key": adminKey}
	ctx := context.Background()

	ids := make([]string, 2)
	for i, key := range []string{"a", "b"} {
		id, err := ts.store.InsertOrder(ctx, &domain.Order{
			OrderNumber:    "ORD-20240101-0042",
			CustomerName:   "Aziz",
			CustomerPhone:  "+998901234567",
			TotalPrice:     decimal.NewFromInt(100),
			Status:         domain.StatusNew,
			IdempotencyKey: key,
		})
		require.NoError(t, err)
		ids[i] = id
	}

	rec := ts.do(http.MethodPatch, "/api/admin/orders/"+ids[0]+"/status", `{"status":"cancelled"}`, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decodeBody[OrderResponse](t, rec).Status)

	rec = ts.do(http.MethodGet, "/api/admin/orders/"+ids[1], "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new", decodeBody[OrderResponse](t, rec).Status)

	rec = ts.do(http.MethodGet, "/api/admin/orders?number=ORD-20240101-0042", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	statuses := map[string]string{}
	for _, o := range decodeBody[[]OrderResponse](t, rec) {
		statuses[o.ID] = o.Status
	}
	assert.Equal(t, map[string]string{ids[0]: "cancelled", ids[1]: "new"}, statuses)
}

func TestAdmin_TelegramSettingsInvalidateCache(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := map[string]string{"X-API-Key": adminKey}
	ctx := context.Background()

	cached, err := ts.settings.TelegramSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "-100", cached.ChatID)

	rec := ts.do(http.MethodGet, "/api/admin/settings/telegram", "", auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123:***", decodeBody[TelegramSettingsDTO](t, rec).BotToken)

	rec = ts.do(http.MethodPut, "/api/admin/settings/telegram",
		`{"bot_token":" 456:other ","chat_id":"-200","enabled":true}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "456:***", decodeBody[TelegramSettingsDTO](t, rec).BotToken)

	fresh, err := ts.settings.TelegramSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "-200", fresh.ChatID)
	assert.Equal(t, "456:other", fresh.BotToken)
}

func TestAdmin_SendTelegram(t *testing.T) {
	ts := newTestServer(t, nil)
	auth := map[string]string{"X-API-Key": adminKey}

	rec := ts.do(http.MethodPost, "/api/admin/notifications/telegram", `{"text":"Склад закрыт"}`, auth)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Склад закрыт"}, ts.sender.sent())

	ts.sender.err = errors.New("bad gateway")
	rec = ts.do(http.MethodPost, "/api/admin/notifications/telegram", `{"text":"again"}`, auth)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	ts.sender.err = nil
	rec = ts.do(http.MethodPut, "/api/admin/settings/telegram", `{"bot_token":"","chat_id":"","enabled":false}`, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(http.MethodPost, "/api/admin/notifications/telegram", `{"text":"skipped"}`, auth)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = ts.do(http.MethodPost, "/api/admin/notifications/telegram", `{"text":"  "}`, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCatalogRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/products?page_size=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[ProductListResponse](t, rec)
	assert.Equal(t, 2, list.Total, "inactive products are hidden")
	assert.Len(t, list.Products, 1)

	rec = ts.do(http.MethodGet, "/api/products?include_inactive=true&page=99999999999", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = decodeBody[ProductListResponse](t, rec)
	assert.Equal(t, 2, list.Total)
	assert.Empty(t, list.Products)

	rec = ts.do(http.MethodGet, "/api/products?search=%25", "", nil)
	assert.Zero(t, decodeBody[ProductListResponse](t, rec).Total)

	rec = ts.do(http.MethodGet, "/api/products?category=sofas", "", nil)
	list = decodeBody[ProductListResponse](t, rec)
	require.Len(t, list.Products, 1)
	assert.Equal(t, "P1", list.Products[0].ID)

	rec = ts.do(http.MethodGet, "/api/products/P1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decodeBody[ProductResponse](t, rec)
	require.NotNil(t, p.Price)
	assert.Equal(t, json.Number("150000"), *p.Price)

	rec = ts.do(http.MethodGet, "/api/products/NOPE", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/products/OFF", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Старый шкаф")

	rec = ts.do(http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]CategoryResponse](t, rec), 1)
}

func TestSitemap(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/sitemap.xml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/xml")
	body := rec.Body.String()
	assert.Contains(t, body, "https://mebel.example/product/chester")
	assert.Contains(t, body, "https://mebel.example/catalog?category=sofas")
	assert.NotContains(t, body, "/product/OFF")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
