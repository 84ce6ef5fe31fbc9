package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// InitDB opens the pool, checks connectivity and applies the schema.
func InitDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// Migrate creates the checkout schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	price           NUMERIC(12,2) NOT NULL,
	offer_price     NUMERIC(12,2),
	inventory_count INT NOT NULL DEFAULT 0 CHECK (inventory_count >= 0),
	active          BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS cities (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	shipment_fee NUMERIC(12,2) NOT NULL DEFAULT 0,
	active       BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS addresses (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	line        TEXT NOT NULL DEFAULT '',
	postal_code TEXT NOT NULL DEFAULT '',
	city_id     TEXT NOT NULL REFERENCES cities(id)
);

CREATE TABLE IF NOT EXISTS coupons (
	code       TEXT PRIMARY KEY,
	discount   NUMERIC(5,2) NOT NULL,
	valid_from TIMESTAMPTZ NOT NULL,
	valid_to   TIMESTAMPTZ NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS orders (
	id                  TEXT PRIMARY KEY,
	customer_id         TEXT NOT NULL,
	subtotal            NUMERIC(12,2) NOT NULL,
	discount            NUMERIC(12,2) NOT NULL DEFAULT 0,
	shipping_fee        NUMERIC(12,2) NOT NULL DEFAULT 0,
	tax                 NUMERIC(12,2) NOT NULL DEFAULT 0,
	total               NUMERIC(12,2) NOT NULL CHECK (total >= 0),
	payment_status      TEXT NOT NULL DEFAULT 'pending',
	paid                BOOLEAN NOT NULL DEFAULT FALSE,
	received            BOOLEAN NOT NULL DEFAULT FALSE,
	received_at         TIMESTAMPTZ,
	packaged            BOOLEAN NOT NULL DEFAULT FALSE,
	packaged_at         TIMESTAMPTZ,
	delivered           BOOLEAN NOT NULL DEFAULT FALSE,
	delivered_at        TIMESTAMPTZ,
	shipping_address_id TEXT NOT NULL,
	coupon_code         TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS orders_pending_created_idx ON orders (payment_status, created_at);

CREATE TABLE IF NOT EXISTS order_lines (
	id         SERIAL PRIMARY KEY,
	order_id   TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	product_id TEXT NOT NULL REFERENCES products(id),
	quantity   INT NOT NULL CHECK (quantity >= 1),
	unit_price NUMERIC(12,2) NOT NULL,
	ready      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS payments (
	id             TEXT PRIMARY KEY,
	order_id       TEXT NOT NULL UNIQUE REFERENCES orders(id),
	amount         NUMERIC(12,2) NOT NULL,
	gateway        TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	transaction_id TEXT NOT NULL DEFAULT '',
	invoice_id     TEXT NOT NULL DEFAULT '',
	invoice_url    TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
