package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
)

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return s.run(ctx, func(sqlTx *sql.Tx) error {
		return fn(ctx, &tx{tx: sqlTx})
	})
}

// run executes fn inside BEGIN IMMEDIATE. The transaction is rolled back when
// fn returns an error or panics.
func (s *Store) run(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(sqlTx); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return storageError("commit", err)
	}
	return nil
}

type tx struct {
	tx *sql.Tx
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// LockProductsForUpdate reads the products under the writer lock already held
// by the IMMEDIATE transaction.
func (t *tx) LockProductsForUpdate(ctx context.Context, ids []string) ([]entity.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT %s FROM products WHERE id IN (%s) ORDER BY id`, productColumns, placeholders(len(ids)))

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageError("lock products", err)
	}
	defer rows.Close()

	var out []entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("lock products", err)
	}
	return out, nil
}

func (t *tx) DecrementStockIfSufficient(ctx context.Context, productID string, amount int) (int64, error) {
	const q = `UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`

	res, err := t.tx.ExecContext(ctx, q, amount, formatTime(nowFunc()), productID, amount)
	if err != nil {
		return 0, storageError("decrement stock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("decrement stock", err)
	}
	return n, nil
}

func (t *tx) InsertOrder(ctx context.Context, o *entity.Order) error {
	const q = `
		INSERT INTO orders
			(id, customer_name, customer_email, customer_address, notes, subtotal, shipping_cost, total, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.tx.ExecContext(ctx, q,
		o.ID,
		o.Customer.Name,
		o.Customer.Email,
		o.Customer.Address,
		o.Notes,
		o.Subtotal.StringFixed(2),
		o.ShippingCost.StringFixed(2),
		o.Total.StringFixed(2),
		o.Status,
		formatTime(o.CreatedAt),
	)
	return storageError("insert order", err)
}

func (t *tx) InsertOrderItems(ctx context.Context, orderID string, items []entity.OrderItem) error {
	const q = `
		INSERT INTO order_items (order_id, position, product_id, name, price, quantity, subtotal)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	stmt, err := t.tx.PrepareContext(ctx, q)
	if err != nil {
		return storageError("insert order items", err)
	}
	defer stmt.Close()

	for i, it := range items {
		_, err := stmt.ExecContext(ctx, orderID, i, it.ProductID, it.Name, it.Price.String(), it.Quantity, it.Subtotal.StringFixed(2))
		if err != nil {
			return storageError("insert order items", err)
		}
	}
	return nil
}

func (t *tx) EnqueueEvent(ctx context.Context, evt entity.OutboxEvent) error {
	const q = `
		INSERT INTO outbox_events (event_id, topic, msg_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := t.tx.ExecContext(ctx, q, evt.EventID, evt.Topic, evt.Key, string(evt.Payload), formatTime(evt.CreatedAt))
	return storageError("enqueue event", err)
}
