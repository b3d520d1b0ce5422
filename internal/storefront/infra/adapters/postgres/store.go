// Package postgres is the production Store backend on top of pgxpool. Stock
// is protected by SELECT ... FOR UPDATE row locks, so orders over disjoint
// products commit in parallel.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
)

var _ ports.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS products (
    id          TEXT          PRIMARY KEY,
    name        TEXT          NOT NULL,
    description TEXT          NOT NULL DEFAULT '',
    category    TEXT          NOT NULL DEFAULT '',
    price       NUMERIC(12,4) NOT NULL CHECK (price >= 0),
    stock       INTEGER       NOT NULL CHECK (stock >= 0),
    image       TEXT          NOT NULL DEFAULT '',
    tags        TEXT[]        NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ   NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ   NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products (lower(category));

CREATE TABLE IF NOT EXISTS orders (
    id               TEXT          PRIMARY KEY,
    customer_name    TEXT          NOT NULL,
    customer_email   TEXT          NOT NULL,
    customer_address TEXT          NOT NULL,
    notes            TEXT          NOT NULL DEFAULT '',
    status           TEXT          NOT NULL,
    subtotal         NUMERIC(12,2) NOT NULL,
    shipping_cost    NUMERIC(12,2) NOT NULL,
    total            NUMERIC(12,2) NOT NULL,
    created_at       TIMESTAMPTZ   NOT NULL,
    seq              BIGSERIAL
);

CREATE INDEX IF NOT EXISTS idx_orders_created ON orders (created_at DESC, seq DESC);

CREATE TABLE IF NOT EXISTS order_items (
    id          BIGSERIAL     PRIMARY KEY,
    order_id    TEXT          NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    position    INTEGER       NOT NULL,
    product_id  TEXT          NOT NULL,
    name        TEXT          NOT NULL,
    price       NUMERIC(12,4) NOT NULL,
    quantity    INTEGER       NOT NULL CHECK (quantity > 0),
    subtotal    NUMERIC(12,2) NOT NULL,
    UNIQUE (order_id, position)
);

CREATE TABLE IF NOT EXISTS outbox (
    id          BIGSERIAL   PRIMARY KEY,
    event_id    TEXT        NOT NULL UNIQUE,
    topic       TEXT        NOT NULL,
    key         TEXT        NOT NULL,
    payload     JSONB       NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    sent_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox (id) WHERE sent_at IS NULL;
`

type Options struct {
	MaxConns         int32
	StatementTimeout time.Duration
}

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, checks the connection and applies the schema.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.StatementTimeout > 0 {
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(opts.StatementTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) UpsertProducts(ctx context.Context, products []entity.Product) error {
	const q = `
		INSERT INTO products (id, name, description, category, price, stock, image, tags)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			category    = EXCLUDED.category,
			price       = EXCLUDED.price,
			stock       = EXCLUDED.stock,
			image       = EXCLUDED.image,
			tags        = EXCLUDED.tags,
			updated_at  = now()`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range products {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		if _, err := tx.Exec(ctx, q, p.ID, p.Name, p.Description, p.Category, p.Price.String(), p.Stock, p.Image, tags); err != nil {
			return storageError("upsert product "+p.ID, err)
		}
	}
	return storageError("commit", tx.Commit(ctx))
}
