package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

func (s *Store) ListProducts(ctx context.Context, filter entity.ProductFilter) ([]entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]entity.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if filter.MinPrice != nil && p.Price.LessThan(*filter.MinPrice) {
			continue
		}
		if filter.MaxPrice != nil && p.Price.GreaterThan(*filter.MaxPrice) {
			continue
		}
		if search != "" && !matches(p, search) {
			continue
		}
		out = append(out, cloneProduct(p))
	}

	slices.SortFunc(out, func(a, b entity.Product) int {
		var c int
		switch filter.Sort {
		case entity.SortByPriceAsc:
			c = a.Price.Cmp(b.Price)
		case entity.SortByPriceDesc:
			c = b.Price.Cmp(a.Price)
		case entity.SortByStockDesc:
			c = b.Stock - a.Stock
		}
		if c == 0 {
			c = strings.Compare(a.Name, b.Name)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		return c
	})
	return out, nil
}

func matches(p entity.Product, term string) bool {
	if strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Description), term) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

func (s *Store) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	p, ok := s.products[id]
	if !ok {
		return nil, &entity.NotFoundError{ProductID: id}
	}
	p = cloneProduct(p)
	return &p, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	seen := make(map[string]struct{})
	out := []string{}
	for _, p := range s.products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	slices.Sort(out)
	return out, nil
}
