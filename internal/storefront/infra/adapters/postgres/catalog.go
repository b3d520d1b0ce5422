package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

const productColumns = `id, name, description, category, price::text, stock, image, tags`

func scanProduct(row pgx.Row) (entity.Product, error) {
	var (
		p     entity.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &price, &p.Stock, &p.Image, &p.Tags); err != nil {
		return entity.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return entity.Product{}, fmt.Errorf("postgres: product %s price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}

func collectProducts(rows pgx.Rows) ([]entity.Product, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.Product, error) {
		return scanProduct(row)
	})
}

func (s *Store) ListProducts(ctx context.Context, filter entity.ProductFilter) ([]entity.Product, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Category != "" {
		where = append(where, `lower(category) = lower(`+arg(filter.Category)+`)`)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		p := arg("%" + term + "%")
		where = append(where, `(name ILIKE `+p+` OR description ILIKE `+p+
			` OR EXISTS (SELECT 1 FROM unnest(tags) AS tag WHERE tag ILIKE `+p+`))`)
	}
	if filter.MinPrice != nil {
		where = append(where, `price >= `+arg(filter.MinPrice.String())+`::numeric`)
	}
	if filter.MaxPrice != nil {
		where = append(where, `price <= `+arg(filter.MaxPrice.String())+`::numeric`)
	}

	q := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY ` + orderBy(filter.Sort)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: list products: %w", err)
	}
	if products == nil {
		products = []entity.Product{}
	}
	return products, nil
}

func orderBy(sort entity.ProductSort) string {
	switch sort {
	case entity.SortByPriceAsc:
		return `price ASC, name ASC, id ASC`
	case entity.SortByPriceDesc:
		return `price DESC, name ASC, id ASC`
	case entity.SortByStockDesc:
		return `stock DESC, name ASC, id ASC`
	default:
		return `name ASC, id ASC`
	}
}

func (s *Store) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &entity.NotFoundError{ProductID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get product %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list categories: %w", err)
	}
	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: list categories: %w", err)
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}
