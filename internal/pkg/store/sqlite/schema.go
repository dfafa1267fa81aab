package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS categories (
    id          TEXT PRIMARY KEY,
    name_ru     TEXT,
    name_uz     TEXT,
    slug        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products (
    id          TEXT PRIMARY KEY,
    name_ru     TEXT,
    name_uz     TEXT,
    -- NULL price is read as 0 by the order pipeline.
    price       NUMERIC,
    is_active   INTEGER NOT NULL DEFAULT 1,
    in_stock    INTEGER NOT NULL DEFAULT 1,
    category_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
    slug        TEXT NOT NULL DEFAULT '',
    updated_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);

CREATE TABLE IF NOT EXISTS orders (
    id               TEXT PRIMARY KEY,
    order_number     TEXT NOT NULL,
    customer_name    TEXT NOT NULL,
    customer_phone   TEXT NOT NULL,
    customer_message TEXT,
    total_price      NUMERIC NOT NULL,
    status           TEXT NOT NULL DEFAULT 'new',
    idempotency_key  TEXT,
    created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_number ON orders(order_number);
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_idempotency_key ON orders(idempotency_key);

CREATE TABLE IF NOT EXISTS order_items (
    id               TEXT PRIMARY KEY,
    order_id         TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id       TEXT NOT NULL,
    product_name     TEXT NOT NULL,
    price_snapshot   NUMERIC NOT NULL,
    quantity         INTEGER NOT NULL CHECK (quantity BETWEEN 1 AND 100),
    selected_options TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

CREATE TABLE IF NOT EXISTS system_settings (
    id                 INTEGER PRIMARY KEY CHECK (id = 1),
    telegram_bot_token TEXT NOT NULL DEFAULT '',
    telegram_chat_id   TEXT NOT NULL DEFAULT '',
    telegram_enabled   INTEGER NOT NULL DEFAULT 0,
    updated_at         TEXT NOT NULL
);
`
