package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jcmexdev/regaloshop/internal/pkg/cache"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
)

var (
	_ ports.CatalogService     = (*CatalogService)(nil)
	_ ports.CatalogInvalidator = (*CatalogService)(nil)
)

// CatalogService is the read path over products. Single-product lookups go
// through a cache-aside layer; concurrent misses for the same id collapse
// into one store read.
type CatalogService struct {
	reader ports.CatalogReader
	cache  cache.Cache
	ttl    time.Duration
	group  singleflight.Group
}

// NewCatalogService builds the service. c may be nil to disable caching.
func NewCatalogService(reader ports.CatalogReader, c cache.Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{reader: reader, cache: c, ttl: ttl}
}

func (s *CatalogService) ListProducts(ctx context.Context, filter entity.ProductFilter) ([]entity.Product, error) {
	products, err := s.reader.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	if products == nil {
		products = []entity.Product{}
	}
	return products, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := s.reader.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list categories: %w", err)
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*entity.Product, error) {
	if s.cache == nil {
		return s.reader.GetProduct(ctx, id)
	}

	key := s.cache.GenerateKey("product", id)
	if p, ok := s.fromCache(ctx, key); ok {
		return p, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		if p, ok := s.fromCache(ctx, key); ok {
			return p, nil
		}
		p, err := s.reader.GetProduct(ctx, id)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, key, string(data), s.ttl); err != nil {
				slog.WarnContext(ctx, "catalog cache write failed", "product_id", id, "error", err)
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p := *v.(*entity.Product)
	return &p, nil
}

func (s *CatalogService) fromCache(ctx context.Context, key string) (*entity.Product, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "catalog cache read failed", "key", key, "error", err)
		return nil, false
	}
	if raw == "" {
		return nil, false
	}
	var p entity.Product
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, false
	}
	return &p, true
}

// Invalidate drops the cached entries of productIDs.
func (s *CatalogService) Invalidate(ctx context.Context, productIDs ...string) {
	if s.cache == nil || len(productIDs) == 0 {
		return
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = s.cache.GenerateKey("product", id)
	}
	if err := s.cache.Del(context.WithoutCancel(ctx), keys...); err != nil {
		slog.WarnContext(ctx, "catalog cache invalidation failed", "products", productIDs, "error", err)
	}
}
