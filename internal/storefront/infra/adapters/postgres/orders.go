package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

// ListOrders returns every order with its lines, newest first.
func (s *Store) ListOrders(ctx context.Context) ([]entity.Order, error) {
	const ordersQ = `
		SELECT id, customer_name, customer_email, customer_address, notes, status,
		       subtotal::text, shipping_cost::text, total::text, created_at
		FROM   orders
		ORDER  BY created_at DESC, seq DESC`

	rows, err := s.pool.Query(ctx, ordersQ)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Order, error) {
		var (
			o                         entity.Order
			subtotal, shipping, total string
		)
		err := row.Scan(&o.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Address, &o.Notes, &o.Status,
			&subtotal, &shipping, &total, &o.CreatedAt)
		if err != nil {
			return o, err
		}
		if o.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return o, err
		}
		if o.ShippingCost, err = decimal.NewFromString(shipping); err != nil {
			return o, err
		}
		if o.Total, err = decimal.NewFromString(total); err != nil {
			return o, err
		}
		o.CreatedAt = o.CreatedAt.UTC()
		o.Items = []entity.OrderItem{}
		return o, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	if len(orders) == 0 {
		return []entity.Order{}, nil
	}

	index := make(map[string]int, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		index[o.ID] = i
		ids[i] = o.ID
	}

	const itemsQ = `
		SELECT order_id, product_id, name, price::text, quantity, subtotal::text
		FROM   order_items
		WHERE  order_id = ANY($1::text[])
		ORDER  BY order_id, position`

	itemRows, err := s.pool.Query(ctx, itemsQ, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: list order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			orderID         string
			it              entity.OrderItem
			price, subtotal string
		)
		if err := itemRows.Scan(&orderID, &it.ProductID, &it.Name, &price, &it.Quantity, &subtotal); err != nil {
			return nil, fmt.Errorf("postgres: scan order item: %w", err)
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if it.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, err
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return orders, itemRows.Err()
}
