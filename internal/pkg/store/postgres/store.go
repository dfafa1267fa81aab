// Package postgres implements the storefront repositories on PostgreSQL via pgxpool.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/mebel-storefront/internal/order-service/domain"
	"github.com/jcmexdev/mebel-storefront/internal/order-service/ports"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

var (
	_ ports.ProductRepository  = (*Store)(nil)
	_ ports.OrderRepository    = (*Store)(nil)
	_ ports.SettingsRepository = (*Store)(nil)
)

// Open configures a pool for databaseURL, verifies connectivity and applies the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	pcfg.HealthCheckPeriod = 30 * time.Second
	pcfg.MaxConnIdleTime = 5 * time.Minute

	// keep sessions on UTC
	pcfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `SET TIME ZONE 'UTC'`)
		return err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const productColumns = `id, COALESCE(name_ru,''), COALESCE(name_uz,''), price::text, is_active, in_stock,
	COALESCE(category_id,''), slug, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p     domain.Product
		price *string
	)
	if err := row.Scan(&p.ID, &p.NameRU, &p.NameUZ, &price, &p.IsActive, &p.InStock,
		&p.CategoryID, &p.Slug, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	if price != nil {
		d, err := decimal.NewFromString(*price)
		if err != nil {
			return domain.Product{}, fmt.Errorf("postgres: price of %s: %w", p.ID, err)
		}
		p.Price = decimal.NewNullDecimal(d)
	}
	return p, nil
}

func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: get products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("postgres: get product %q: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = "+arg(f.CategoryID))
	}
	if f.Search != "" {
		needle := arg(f.SearchPattern())
		where = append(where, "(name_ru ILIKE "+needle+` ESCAPE '\' OR name_uz ILIKE `+needle+` ESCAPE '\')`)
	}
	if f.ActiveOnly {
		where = append(where, "is_active")
	}
	if f.InStockOnly {
		where = append(where, "in_stock")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count products: %w", err)
	}

	q := `SELECT ` + productColumns + ` FROM products` + clause + ` ORDER BY updated_at DESC, id`
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres: scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, COALESCE(name_ru,''), COALESCE(name_uz,''), slug FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.NameRU, &c.NameUZ, &c.Slug); err != nil {
			return nil, fmt.Errorf("postgres: scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) InsertOrder(ctx context.Context, o *domain.Order) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO orders
			(id, order_number, customer_name, customer_phone, customer_message, total_price, status, idempotency_key)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()),
			$2, $3, $4, NULLIF($5, ''), $6::numeric, $7, NULLIF($8, ''))
		RETURNING id::text`,
		o.ID, o.OrderNumber, o.CustomerName, o.CustomerPhone, o.CustomerMessage,
		o.TotalPrice.String(), string(o.Status), o.IdempotencyKey,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return "", domain.ErrDuplicateKey
		}
		return "", fmt.Errorf("postgres: insert order %s: %w", o.OrderNumber, err)
	}
	return id, nil
}

// InsertOrderItems sends every row in one batch inside a local transaction.
func (s *Store) InsertOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i, it := range items {
			opts, err := json.Marshal(it.SelectedOptions)
			if err != nil {
				return err
			}
			batch.Queue(`
				INSERT INTO order_items
					(order_id, product_id, product_name, price_snapshot, quantity, selected_options, position)
				VALUES ($1::uuid, $2, $3, $4::numeric, $5, $6::jsonb, $7)`,
				orderID, it.ProductID, it.ProductName, it.PriceSnapshot.String(), it.Quantity, string(opts), i)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("postgres: insert items for %s: %w", orderID, err)
	}
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, orderID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1::uuid`, orderID); err != nil {
		return fmt.Errorf("postgres: delete order %s: %w", orderID, err)
	}
	return nil
}

const orderColumns = `id::text, order_number, customer_name, customer_phone, COALESCE(customer_message,''),
	total_price::text, status, COALESCE(idempotency_key,''), created_at`

func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return s.findOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key)
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrOrderNotFound
	}
	return s.findOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1::uuid`, id)
}

func (s *Store) FindByNumber(ctx context.Context, number string) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text FROM orders WHERE order_number = $1 ORDER BY created_at, id`, number)
	if err != nil {
		return nil, fmt.Errorf("postgres: find orders %s: %w", number, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: find orders %s: %w", number, err)
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
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2::uuid AND status = $3`,
		string(next), id, string(expected))
	if err != nil {
		return false, fmt.Errorf("postgres: update status of %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) findOrder(ctx context.Context, q, arg string) (*domain.Order, error) {
	var (
		o      domain.Order
		total  string
		status string
	)
	err := s.pool.QueryRow(ctx, q, arg).Scan(&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerPhone,
		&o.CustomerMessage, &total, &status, &o.IdempotencyKey, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find order: %w", err)
	}
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("postgres: total of %s: %w", o.OrderNumber, err)
	}
	o.Status = domain.OrderStatus(status)

	rows, err := s.pool.Query(ctx, `
		SELECT id::text, order_id::text, product_id, product_name, price_snapshot::text, quantity, selected_options
		FROM order_items WHERE order_id = $1::uuid ORDER BY position`, o.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load items of %s: %w", o.OrderNumber, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it    domain.OrderItem
			price string
			opts  []byte
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &price, &it.Quantity, &opts); err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		if it.PriceSnapshot, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("postgres: item price: %w", err)
		}
		_ = json.Unmarshal(opts, &it.SelectedOptions)
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (s *Store) GetTelegramSettings(ctx context.Context) (domain.TelegramSettings, error) {
	var ts domain.TelegramSettings
	err := s.pool.QueryRow(ctx, `
		SELECT telegram_bot_token, telegram_chat_id, telegram_enabled, updated_at
		FROM system_settings WHERE id = 1`).Scan(&ts.BotToken, &ts.ChatID, &ts.Enabled, &ts.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TelegramSettings{}, nil
	}
	if err != nil {
		return domain.TelegramSettings{}, fmt.Errorf("postgres: read settings: %w", err)
	}
	return ts, nil
}

func (s *Store) SaveTelegramSettings(ctx context.Context, ts domain.TelegramSettings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO system_settings (id, telegram_bot_token, telegram_chat_id, telegram_enabled, updated_at)
		VALUES (1, $1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			telegram_bot_token = EXCLUDED.telegram_bot_token,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			telegram_enabled = EXCLUDED.telegram_enabled,
			updated_at = now()`,
		ts.BotToken, ts.ChatID, ts.Enabled)
	if err != nil {
		return fmt.Errorf("postgres: save settings: %w", err)
	}
	return nil
}
