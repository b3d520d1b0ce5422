// Package sqlite is the embedded Store backend. Writers are serialized by
// SQLite itself: every transaction starts with BEGIN IMMEDIATE, so the
// database-level reserved lock stands in for row locks.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"

	// Pure-Go driver, no CGO.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
    id           TEXT    PRIMARY KEY,
    name         TEXT    NOT NULL,
    description  TEXT    NOT NULL DEFAULT '',
    category     TEXT    NOT NULL DEFAULT '',
    -- Decimal text, never REAL, so prices survive round trips exactly.
    price        TEXT    NOT NULL,
    stock        INTEGER NOT NULL CHECK (stock >= 0),
    image        TEXT    NOT NULL DEFAULT '',
    tags         TEXT    NOT NULL DEFAULT '[]',
    updated_at   TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS orders (
    id               TEXT PRIMARY KEY,
    customer_name    TEXT NOT NULL,
    customer_email   TEXT NOT NULL,
    customer_address TEXT NOT NULL,
    notes            TEXT NOT NULL DEFAULT '',
    subtotal         TEXT NOT NULL,
    shipping_cost    TEXT NOT NULL,
    total            TEXT NOT NULL,
    status           TEXT NOT NULL,
    created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at);

CREATE TABLE IF NOT EXISTS order_items (
    order_id    TEXT    NOT NULL REFERENCES orders(id),
    position    INTEGER NOT NULL,
    product_id  TEXT    NOT NULL,
    name        TEXT    NOT NULL,
    price       TEXT    NOT NULL,
    quantity    INTEGER NOT NULL CHECK (quantity > 0),
    subtotal    TEXT    NOT NULL,
    PRIMARY KEY (order_id, position)
);

CREATE TABLE IF NOT EXISTS outbox_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id    TEXT    NOT NULL UNIQUE,
    topic       TEXT    NOT NULL,
    msg_key     TEXT    NOT NULL,
    payload     TEXT    NOT NULL,
    created_at  TEXT    NOT NULL,
    sent_at     TEXT
);

CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_events(sent_at, id);
`

var _ ports.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate"+
		"&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// One connection: a second writer would only spin on SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertProducts inserts products or overwrites the existing rows with the
// same id.
func (s *Store) UpsertProducts(ctx context.Context, products []entity.Product) error {
	const q = `
		INSERT INTO products (id, name, description, category, price, stock, image, tags, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			description = excluded.description,
			category    = excluded.category,
			price       = excluded.price,
			stock       = excluded.stock,
			image       = excluded.image,
			tags        = excluded.tags,
			updated_at  = excluded.updated_at`

	return s.run(ctx, func(tx *sql.Tx) error {
		now := formatTime(nowFunc())
		for _, p := range products {
			tags := p.Tags
			if tags == nil {
				tags = []string{}
			}
			encoded, err := json.Marshal(tags)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, q,
				p.ID, p.Name, p.Description, p.Category, p.Price.String(), p.Stock, p.Image, string(encoded), now)
			if err != nil {
				return storageError("upsert product "+p.ID, err)
			}
		}
		return nil
	})
}
