package ports

import (
	"context"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

type CatalogReader interface {
	ListProducts(ctx context.Context, filter entity.ProductFilter) ([]entity.Product, error)
	// GetProduct returns *entity.NotFoundError when id does not exist.
	GetProduct(ctx context.Context, id string) (*entity.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// CatalogInvalidator drops cached catalog entries after their stock changed.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, productIDs ...string)
}
