package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
)

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return storageError("begin transaction", err)
	}
	// Rollback after Commit is a no-op; on error or panic it releases the
	// row locks.
	defer func() { _ = pgTx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, &tx{tx: pgTx}); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return storageError("commit", err)
	}
	return nil
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) LockProductsForUpdate(ctx context.Context, ids []string) ([]entity.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::text[]) ORDER BY id FOR UPDATE`

	rows, err := t.tx.Query(ctx, q, ids)
	if err != nil {
		return nil, storageError("lock products", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, storageError("lock products", err)
	}
	return products, nil
}

func (t *tx) DecrementStockIfSufficient(ctx context.Context, productID string, amount int) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE products SET stock = stock - $1, updated_at = now() WHERE id = $2 AND stock >= $1`,
		amount, productID)
	if err != nil {
		return 0, storageError("decrement stock", err)
	}
	return tag.RowsAffected(), nil
}

func (t *tx) InsertOrder(ctx context.Context, o *entity.Order) error {
	const q = `
		INSERT INTO orders
			(id, customer_name, customer_email, customer_address, notes, status, subtotal, shipping_cost, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10)`

	_, err := t.tx.Exec(ctx, q,
		o.ID,
		o.Customer.Name,
		o.Customer.Email,
		o.Customer.Address,
		o.Notes,
		o.Status,
		o.Subtotal.StringFixed(2),
		o.ShippingCost.StringFixed(2),
		o.Total.StringFixed(2),
		o.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("postgres: order %s already exists: %w", o.ID, err)
	}
	return storageError("insert order", err)
}

func (t *tx) InsertOrderItems(ctx context.Context, orderID string, items []entity.OrderItem) error {
	const q = `
		INSERT INTO order_items (order_id, position, product_id, name, price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::numeric)`

	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(q, orderID, i, it.ProductID, it.Name, it.Price.String(), it.Quantity, it.Subtotal.StringFixed(2))
	}
	return storageError("insert order items", t.tx.SendBatch(ctx, batch).Close())
}

func (t *tx) EnqueueEvent(ctx context.Context, evt entity.OutboxEvent) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		evt.EventID, evt.Topic, evt.Key, []byte(evt.Payload), evt.CreatedAt)
	return storageError("enqueue event", err)
}
