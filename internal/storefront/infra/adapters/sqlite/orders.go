package sqlite

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

// ListOrders returns every order with its lines, newest first. Orders
// created in the same instant come back in reverse insertion order.
func (s *Store) ListOrders(ctx context.Context) ([]entity.Order, error) {
	const ordersQ = `
		SELECT id, customer_name, customer_email, customer_address, notes,
		       subtotal, shipping_cost, total, status, created_at
		FROM   orders
		ORDER  BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, ordersQ)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list orders: %w", err)
	}
	defer rows.Close()

	out := []entity.Order{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			o                         entity.Order
			subtotal, shipping, total string
			createdAt                 string
		)
		err := rows.Scan(&o.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Address, &o.Notes,
			&subtotal, &shipping, &total, &o.Status, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan order: %w", err)
		}
		if o.Subtotal, err = parseMoney(subtotal); err != nil {
			return nil, err
		}
		if o.ShippingCost, err = parseMoney(shipping); err != nil {
			return nil, err
		}
		if o.Total, err = parseMoney(total); err != nil {
			return nil, err
		}
		if o.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		o.Items = []entity.OrderItem{}
		index[o.ID] = len(out)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list orders: %w", err)
	}
	rows.Close()

	if len(out) == 0 {
		return out, nil
	}

	const itemsQ = `
		SELECT order_id, product_id, name, price, quantity, subtotal
		FROM   order_items
		ORDER  BY order_id, position`

	itemRows, err := s.db.QueryContext(ctx, itemsQ)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var (
			orderID         string
			it              entity.OrderItem
			price, subtotal string
		)
		if err := itemRows.Scan(&orderID, &it.ProductID, &it.Name, &price, &it.Quantity, &subtotal); err != nil {
			return nil, fmt.Errorf("sqlite: scan order item: %w", err)
		}
		if it.Price, err = parseMoney(price); err != nil {
			return nil, err
		}
		if it.Subtotal, err = parseMoney(subtotal); err != nil {
			return nil, err
		}
		i, ok := index[orderID]
		if !ok {
			continue
		}
		out[i].Items = append(out[i].Items, it)
	}
	return out, itemRows.Err()
}

func parseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("sqlite: parse amount %q: %w", s, err)
	}
	return d, nil
}
