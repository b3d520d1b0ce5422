package ports

import (
	"context"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

// CatalogTx is the part of the catalog store the order engine writes through.
// It is only reachable inside a transaction.
type CatalogTx interface {
	// LockProductsForUpdate returns the existing products among ids and holds
	// an exclusive row lock on each until the transaction ends. Missing ids
	// are simply absent from the result.
	LockProductsForUpdate(ctx context.Context, ids []string) ([]entity.Product, error)

	// DecrementStockIfSufficient subtracts amount from the product's stock only
	// when stock >= amount, in one statement. It returns the affected row count.
	DecrementStockIfSufficient(ctx context.Context, productID string, amount int) (int64, error)
}

// OrderWriter persists a new order. Orders are write-once.
type OrderWriter interface {
	InsertOrder(ctx context.Context, order *entity.Order) error
	InsertOrderItems(ctx context.Context, orderID string, items []entity.OrderItem) error
}

// EventWriter appends to the transactional outbox.
type EventWriter interface {
	EnqueueEvent(ctx context.Context, evt entity.OutboxEvent) error
}

// Tx is a transaction-scoped handle. It is valid only inside the callback
// passed to TxManager.WithinTx.
type Tx interface {
	CatalogTx
	OrderWriter
	EventWriter
}

// TxManager runs fn inside one atomic unit of work. The transaction commits
// when fn returns nil and rolls back on any error or panic. Errors returned by
// fn are passed through; storage faults are reported as
// *entity.TransactionFailure.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type OrderReader interface {
	ListOrders(ctx context.Context) ([]entity.Order, error)
}

// OutboxStore is read by the event relay.
type OutboxStore interface {
	FetchPendingEvents(ctx context.Context, limit int) ([]entity.OutboxEvent, error)
	MarkEventSent(ctx context.Context, id int64) error
}

type ProductSeeder interface {
	UpsertProducts(ctx context.Context, products []entity.Product) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Store bundles every persistence port a backend provides.
type Store interface {
	TxManager
	OrderReader
	CatalogReader
	OutboxStore
	ProductSeeder
	Pinger
	Close() error
}
