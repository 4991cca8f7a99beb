package store

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// ConnectPostgres establishes a pooled connection to PostgreSQL.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// EnsureSchema creates the tables the service owns. Products are the
// catalog substrate the order transaction locks and decrements; the
// rest are the order pipeline's own records.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			price          NUMERIC(10,2) NOT NULL,
			stock_quantity INTEGER NOT NULL DEFAULT 0,
			is_available   BOOLEAN NOT NULL DEFAULT TRUE,
			unit           TEXT NOT NULL DEFAULT 'pcs',
			CONSTRAINT products_stock_non_negative CHECK (stock_quantity >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id          UUID PRIMARY KEY,
			user_id     TEXT NOT NULL,
			is_paid     BOOLEAN NOT NULL DEFAULT FALSE,
			total_price NUMERIC(10,2) NOT NULL DEFAULT 0,
			status      TEXT NOT NULL DEFAULT 'pending',
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_created
			ON orders (user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id         UUID PRIMARY KEY,
			order_id   UUID NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
			product_id TEXT NOT NULL,
			quantity   INTEGER NOT NULL,
			price      NUMERIC(10,2) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order
			ON order_items (order_id)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id                  UUID PRIMARY KEY,
			order_id            UUID NOT NULL UNIQUE REFERENCES orders (id) ON DELETE CASCADE,
			external_session_id TEXT NOT NULL,
			amount              NUMERIC(10,2) NOT NULL,
			is_successful       BOOLEAN NOT NULL DEFAULT FALSE,
			created_at          TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_session
			ON payments (external_session_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
