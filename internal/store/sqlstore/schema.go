package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed by the storefront.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, db *sql.DB, dialect Dialect) error {
	schema := schemaPostgres
	if dialect == DialectSQLite {
		schema = schemaSQLite
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS products (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    base_price BIGINT NOT NULL DEFAULT 0,
    currency TEXT NOT NULL,
    customizable BOOLEAN NOT NULL DEFAULT FALSE,
    zakeke_model_code TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS product_options (
    product_code TEXT PRIMARY KEY REFERENCES products(code) ON DELETE CASCADE,
    options JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS cart_items (
    id UUID PRIMARY KEY,
    owner_id TEXT NOT NULL,
    sku TEXT NOT NULL,
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    design_id TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cart_items_owner ON cart_items(owner_id);

CREATE TABLE IF NOT EXISTS orders (
    id UUID PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    customer_id TEXT NOT NULL,
    items JSONB NOT NULL,
    total BIGINT NOT NULL,
    registration TEXT NOT NULL DEFAULT 'pending' CHECK (registration IN ('pending', 'registering', 'registered', 'failed')),
    vendor_order_id TEXT NOT NULL DEFAULT '',
    claimed_until TIMESTAMPTZ,
    order_date TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id, order_date DESC);
CREATE INDEX IF NOT EXISTS idx_orders_pending ON orders(created_at) WHERE registration = 'pending';
CREATE INDEX IF NOT EXISTS idx_orders_claimed ON orders(claimed_until) WHERE registration = 'registering';

CREATE TABLE IF NOT EXISTS order_registration_attempts (
    id UUID PRIMARY KEY,
    order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    attempt INTEGER NOT NULL,
    status_code INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_registration_attempts_order ON order_registration_attempts(order_id);
`

// schemaSQLite mirrors schemaPostgres for local development and tests.
// TIMESTAMP columns let the driver scan values back into time.Time.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS products (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    base_price INTEGER NOT NULL DEFAULT 0,
    currency TEXT NOT NULL,
    customizable BOOLEAN NOT NULL DEFAULT 0,
    zakeke_model_code TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS product_options (
    product_code TEXT PRIMARY KEY REFERENCES products(code) ON DELETE CASCADE,
    options TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cart_items (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    sku TEXT NOT NULL,
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    design_id TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cart_items_owner ON cart_items(owner_id);

CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    customer_id TEXT NOT NULL,
    items TEXT NOT NULL,
    total INTEGER NOT NULL,
    registration TEXT NOT NULL DEFAULT 'pending' CHECK (registration IN ('pending', 'registering', 'registered', 'failed')),
    vendor_order_id TEXT NOT NULL DEFAULT '',
    claimed_until TIMESTAMP,
    order_date TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id, order_date DESC);

CREATE TABLE IF NOT EXISTS order_registration_attempts (
    id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    attempt INTEGER NOT NULL,
    status_code INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_registration_attempts_order ON order_registration_attempts(order_id);
`
