package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

const productColumns = `id, name, description, category, price, stock, image, tags`

func scanProduct(row interface{ Scan(...any) error }) (*entity.Product, error) {
	var (
		p     entity.Product
		price string
		tags  string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &price, &p.Stock, &p.Image, &tags); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan product: %w", err)
	}

	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("sqlite: product %s price %q: %w", p.ID, price, err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("sqlite: product %s tags: %w", p.ID, err)
	}
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter entity.ProductFilter) ([]entity.Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		where = append(where, `lower(category) = lower(?)`)
		args = append(args, filter.Category)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		where = append(where, `(lower(name) LIKE ? OR lower(description) LIKE ?
			OR EXISTS (SELECT 1 FROM json_each(products.tags) WHERE lower(json_each.value) LIKE ?))`)
		args = append(args, like, like, like)
	}
	if filter.MinPrice != nil {
		where = append(where, `CAST(price AS REAL) >= ?`)
		args = append(args, filter.MinPrice.InexactFloat64())
	}
	if filter.MaxPrice != nil {
		where = append(where, `CAST(price AS REAL) <= ?`)
		args = append(args, filter.MaxPrice.InexactFloat64())
	}

	q := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY ` + orderBy(filter.Sort)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list products: %w", err)
	}
	defer rows.Close()

	out := []entity.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func orderBy(sort entity.ProductSort) string {
	switch sort {
	case entity.SortByPriceAsc:
		return `CAST(price AS REAL) ASC, name ASC, id ASC`
	case entity.SortByPriceDesc:
		return `CAST(price AS REAL) DESC, name ASC, id ASC`
	case entity.SortByStockDesc:
		return `stock DESC, name ASC, id ASC`
	default:
		return `name ASC, id ASC`
	}
}

func (s *Store) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entity.NotFoundError{ProductID: id}
	}
	return p, err
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list categories: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("sqlite: scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
