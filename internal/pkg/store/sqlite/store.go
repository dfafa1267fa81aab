// Package sqlite is the default storefront store: catalog, orders and system
// settings in one SQLite file, accessed through sqlx.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"

	msqlite "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z"

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)

	// SQLite's LOWER only folds ASCII; product names are mostly Cyrillic.
	msqlite.MustRegisterDeterministicScalarFunction("unicode_lower", 1,
		func(_ *msqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			s, ok := args[0].(string)
			if !ok {
				return args[0], nil
			}
			return strings.ToLower(s), nil
		})
}

type Store struct {
	db *sqlx.DB
}

var (
	_ ports.ProductRepository  = (*Store)(nil)
	_ ports.OrderRepository    = (*Store)(nil)
	_ ports.SettingsRepository = (*Store)(nil)
)

// Open opens the database at path and applies the schema. ":memory:" gives a
// private database that lives as long as the Store.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	if strings.HasPrefix(path, ":memory:") {
		dsn = "file::memory:?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type productRow struct {
	ID         string              `db:"id"`
	NameRU     sql.NullString      `db:"name_ru"`
	NameUZ     sql.NullString      `db:"name_uz"`
	Price      decimal.NullDecimal `db:"price"`
	IsActive   bool                `db:"is_active"`
	InStock    bool                `db:"in_stock"`
	CategoryID sql.NullString      `db:"category_id"`
	Slug       string              `db:"slug"`
	UpdatedAt  string              `db:"updated_at"`
}

func (r productRow) toDomain() domain.Product {
	updated, _ := time.Parse(time.RFC3339Nano, r.UpdatedAt)
	return domain.Product{
		ID:         r.ID,
		NameRU:     r.NameRU.String,
		NameUZ:     r.NameUZ.String,
		Price:      r.Price,
		IsActive:   r.IsActive,
		InStock:    r.InStock,
		CategoryID: r.CategoryID.String,
		Slug:       r.Slug,
		UpdatedAt:  updated,
	}
}

const productColumns = `id, name_ru, name_uz, price, is_active, in_stock, category_id, slug, updated_at`

func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("sqlite: build product query: %w", err)
	}

	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("sqlite: get products: %w", err)
	}
	out := make([]domain.Product, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("sqlite: get product %q: %w", id, err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Search != "" {
		where = append(where, `(unicode_lower(COALESCE(name_ru,'')) LIKE ? ESCAPE '\' OR unicode_lower(COALESCE(name_uz,'')) LIKE ? ESCAPE '\')`)
		needle := strings.ToLower(f.SearchPattern())
		args = append(args, needle, needle)
	}
	if f.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if f.InStockOnly {
		where = append(where, "in_stock = 1")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM products`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count products: %w", err)
	}

	q := `SELECT ` + productColumns + ` FROM products` + clause + ` ORDER BY updated_at DESC, id`
	if f.Limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, 0, fmt.Errorf("sqlite: list products: %w", err)
	}
	out := make([]domain.Product, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, total, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var rows []struct {
		ID     string         `db:"id"`
		NameRU sql.NullString `db:"name_ru"`
		NameUZ sql.NullString `db:"name_uz"`
		Slug   string         `db:"slug"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name_ru, name_uz, slug FROM categories ORDER BY id`); err != nil {
		return nil, fmt.Errorf("sqlite: list categories: %w", err)
	}
	out := make([]domain.Category, len(rows))
	for i, r := range rows {
		out[i] = domain.Category{ID: r.ID, NameRU: r.NameRU.String, NameUZ: r.NameUZ.String, Slug: r.Slug}
	}
	return out, nil
}

// UpsertProduct is used by admin seeding and tests.
func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) error {
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :name_ru, :name_uz, :price, :is_active, :in_stock, :category_id, :slug, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			name_ru = excluded.name_ru, name_uz = excluded.name_uz, price = excluded.price,
			is_active = excluded.is_active, in_stock = excluded.in_stock,
			category_id = excluded.category_id, slug = excluded.slug, updated_at = excluded.updated_at`,
		productRow{
			ID:         p.ID,
			NameRU:     nullString(p.NameRU),
			NameUZ:     nullString(p.NameUZ),
			Price:      p.Price,
			IsActive:   p.IsActive,
			InStock:    p.InStock,
			CategoryID: nullString(p.CategoryID),
			Slug:       p.Slug,
			UpdatedAt:  updated.UTC().Format(timeLayout),
		})
	if err != nil {
		return fmt.Errorf("sqlite: upsert product %q: %w", p.ID, err)
	}
	return nil
}

func (s *Store) UpsertCategory(ctx context.Context, c domain.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name_ru, name_uz, slug) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name_ru = excluded.name_ru, name_uz = excluded.name_uz, slug = excluded.slug`,
		c.ID, nullString(c.NameRU), nullString(c.NameUZ), c.Slug)
	if err != nil {
		return fmt.Errorf("sqlite: upsert category %q: %w", c.ID, err)
	}
	return nil
}

type orderRow struct {
	ID              string          `db:"id"`
	OrderNumber     string          `db:"order_number"`
	CustomerName    string          `db:"customer_name"`
	CustomerPhone   string          `db:"customer_phone"`
	CustomerMessage sql.NullString  `db:"customer_message"`
	TotalPrice      decimal.Decimal `db:"total_price"`
	Status          string          `db:"status"`
	IdempotencyKey  sql.NullString  `db:"idempotency_key"`
	CreatedAt       string          `db:"created_at"`
}

type itemRow struct {
	ID              string          `db:"id"`
	OrderID         string          `db:"order_id"`
	ProductID       string          `db:"product_id"`
	ProductName     string          `db:"product_name"`
	PriceSnapshot   decimal.Decimal `db:"price_snapshot"`
	Quantity        int             `db:"quantity"`
	SelectedOptions string          `db:"selected_options"`
}

func (s *Store) InsertOrder(ctx context.Context, o *domain.Order) (string, error) {
	created := o.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	id := o.ID
	if id == "" {
		id = uuid.NewString()
	}
	row := orderRow{
		ID:              id,
		OrderNumber:     o.OrderNumber,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		CustomerMessage: nullString(o.CustomerMessage),
		TotalPrice:      o.TotalPrice,
		Status:          string(o.Status),
		IdempotencyKey:  nullString(o.IdempotencyKey),
		CreatedAt:       created.UTC().Format(timeLayout),
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO orders
			(id, order_number, customer_name, customer_phone, customer_message,
			 total_price, status, idempotency_key, created_at)
		VALUES
			(:id, :order_number, :customer_name, :customer_phone, :customer_message,
			 :total_price, :status, :idempotency_key, :created_at)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return "", domain.ErrDuplicateKey
		}
		return "", fmt.Errorf("sqlite: insert order %s: %w", o.OrderNumber, err)
	}
	return row.ID, nil
}

// InsertOrderItems writes every row in a single multi-row INSERT, so SQLite
// applies it atomically.
func (s *Store) InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]itemRow, len(items))
	for i, it := range items {
		opts, err := json.Marshal(it.SelectedOptions)
		if err != nil {
			return fmt.Errorf("sqlite: encode options: %w", err)
		}
		id := it.ID
		if id == "" {
			id = uuid.NewString()
		}
		rows[i] = itemRow{
			ID:              id,
			OrderID:         orderID,
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			PriceSnapshot:   it.PriceSnapshot,
			Quantity:        it.Quantity,
			SelectedOptions: string(opts),
		}
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO order_items
			(id, order_id, product_id, product_name, price_snapshot, quantity, selected_options)
		VALUES
			(:id, :order_id, :product_id, :product_name, :price_snapshot, :quantity, :selected_options)`, rows)
	if err != nil {
		return fmt.Errorf("sqlite: insert items for %s: %w", orderID, err)
	}
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, orderID); err != nil {
		return fmt.Errorf("sqlite: delete order %s: %w", orderID, err)
	}
	return nil
}

// CountOrders returns the number of order headers.
func (s *Store) CountOrders(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM orders`); err != nil {
		return 0, fmt.Errorf("sqlite: count orders: %w", err)
	}
	return n, nil
}

const orderColumns = `id, order_number, customer_name, customer_phone, customer_message,
	total_price, status, idempotency_key, created_at`

func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return s.findOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key = ?`, key)
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.findOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

func (s *Store) FindByNumber(ctx context.Context, number string) ([]*domain.Order, error) {
	var ids []string
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM orders WHERE order_number = ? ORDER BY created_at, id`, number); err != nil {
		return nil, fmt.Errorf("sqlite: find orders %s: %w", number, err)
	}
	out := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, expected, next domain.OrderStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ? AND status = ?`,
		string(next), id, string(expected))
	if err != nil {
		return false, fmt.Errorf("sqlite: update status of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: update status of %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) findOrder(ctx context.Context, q string, arg string) (*domain.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find order: %w", err)
	}

	var items []itemRow
	if err := s.db.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, product_name, price_snapshot, quantity, selected_options
		FROM order_items WHERE order_id = ? ORDER BY rowid`, row.ID); err != nil {
		return nil, fmt.Errorf("sqlite: load items of %s: %w", row.OrderNumber, err)
	}

	created, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	order := &domain.Order{
		ID:              row.ID,
		OrderNumber:     row.OrderNumber,
		CustomerName:    row.CustomerName,
		CustomerPhone:   row.CustomerPhone,
		CustomerMessage: row.CustomerMessage.String,
		TotalPrice:      row.TotalPrice,
		Status:          domain.OrderStatus(row.Status),
		IdempotencyKey:  row.IdempotencyKey.String,
		CreatedAt:       created,
		Items:           make([]domain.OrderItem, len(items)),
	}
	for i, it := range items {
		var opts domain.SelectedOptions
		_ = json.Unmarshal([]byte(it.SelectedOptions), &opts)
		order.Items[i] = domain.OrderItem{
			ID:              it.ID,
			OrderID:         it.OrderID,
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			PriceSnapshot:   it.PriceSnapshot,
			Quantity:        it.Quantity,
			SelectedOptions: opts,
		}
	}
	return order, nil
}

func (s *Store) GetTelegramSettings(ctx context.Context) (domain.TelegramSettings, error) {
	var row struct {
		BotToken  string `db:"telegram_bot_token"`
		ChatID    string `db:"telegram_chat_id"`
		Enabled   bool   `db:"telegram_enabled"`
		UpdatedAt string `db:"updated_at"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT telegram_bot_token, telegram_chat_id, telegram_enabled, updated_at
		FROM system_settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TelegramSettings{}, nil
	}
	if err != nil {
		return domain.TelegramSettings{}, fmt.Errorf("sqlite: read settings: %w", err)
	}
	updated, _ := time.Parse(time.RFC3339Nano, row.UpdatedAt)
	return domain.TelegramSettings{
		BotToken:  row.BotToken,
		ChatID:    row.ChatID,
		Enabled:   row.Enabled,
		UpdatedAt: updated,
	}, nil
}

func (s *Store) SaveTelegramSettings(ctx context.Context, ts domain.TelegramSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_settings (id, telegram_bot_token, telegram_chat_id, telegram_enabled, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			telegram_bot_token = excluded.telegram_bot_token,
			telegram_chat_id = excluded.telegram_chat_id,
			telegram_enabled = excluded.telegram_enabled,
			updated_at = excluded.updated_at`,
		ts.BotToken, ts.ChatID, ts.Enabled, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("sqlite: save settings: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
