package ports

import (
	"context"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

// OrderService is what the HTTP layer consumes.
type OrderService interface {
	CreateOrder(ctx context.Context, req entity.OrderRequest) (*entity.Order, error)
	ListOrders(ctx context.Context) ([]entity.Order, error)
}

type CatalogService interface {
	CatalogReader
}

type IDGenerator interface {
	NewID() string
}

// EventPublisher delivers an outbox event to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, evt entity.OutboxEvent) error
	Close() error
}
