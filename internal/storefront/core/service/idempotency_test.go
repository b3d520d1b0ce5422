package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/regaloshop/internal/pkg/requestmeta"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/service"
	"github.com/jcmexdev/regaloshop/internal/storefront/infra/adapters/memory"
)

// mapCache is an in-process cache.Cache.
type mapCache struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMapCache() *mapCache { return &mapCache{data: map[string]string{}} }

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[key] = value
	return nil
}

func (c *mapCache) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = value
	return true, nil
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	return c.data[key], nil
}

func (c *mapCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *mapCache) GenerateKey(op, key string) string { return "test:" + op + ":" + key }

func newIdempotent(t *testing.T, c *mapCache, stock int) (*service.IdempotentOrderService, *memory.Store) {
	t.Helper()
	store := memory.NewStore(product("p1", "Rosa", "10.00", stock))
	return service.NewIdempotentOrderService(newEngine(t, store), c, time.Hour), store
}

func oneRosa() entity.OrderRequest {
	return entity.OrderRequest{
		Customer: customer(),
		Items:    []entity.ItemRequest{{ProductID: "p1", Quantity: 1}},
	}
}

func TestIdempotentOrderService_Replay(t *testing.T) {
	svc, store := newIdempotent(t, newMapCache(), 5)
	ctx := requestmeta.WithIdempotencyKey(context.Background(), "key-1")

	first, err := svc.CreateOrder(ctx, oneRosa())
	require.NoError(t, err)

	second, err := svc.CreateOrder(ctx, oneRosa())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.Total.Equal(second.Total))

	stock, _ := store.Stock("p1")
	assert.Equal(t, 4, stock)
	orders, err := svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestIdempotentOrderService_KeyReuseWithDifferentBody(t *testing.T) {
	svc, _ := newIdempotent(t, newMapCache(), 5)
	ctx := requestmeta.WithIdempotencyKey(context.Background(), "key-1")

	_, err := svc.CreateOrder(ctx, oneRosa())
	require.NoError(t, err)

	req := oneRosa()
	req.Items[0].Quantity = 2
	_, err = svc.CreateOrder(ctx, req)
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestIdempotentOrderService_ReplayIgnoresSurroundingSpaces(t *testing.T) {
	svc, store := newIdempotent(t, newMapCache(), 5)
	ctx := requestmeta.WithIdempotencyKey(context.Background(), "key-1")

	first, err := svc.CreateOrder(ctx, oneRosa())
	require.NoError(t, err)

	padded := oneRosa()
	padded.Items[0].ProductID = " p1 "
	padded.Customer.Email = " ana@example.com "
	second, err := svc.CreateOrder(ctx, padded)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	stock, _ := store.Stock("p1")
	assert.Equal(t, 4, stock)
}

func TestIdempotentOrderService_InFlight(t *testing.T) {
	c := newMapCache()
	c.data["test:idempotency:key-1"] = "pending"
	svc, _ := newIdempotent(t, c, 5)
	ctx := requestmeta.WithIdempotencyKey(context.Background(), "key-1")

	_, err := svc.CreateOrder(ctx, oneRosa())
	assert.ErrorIs(t, err, entity.ErrIdempotencyInUse)
}

func TestIdempotentOrderService_FailureReleasesKey(t *testing.T) {
	c := newMapCache()
	svc, store := newIdempotent(t, c, 0)
	ctx := requestmeta.WithIdempotencyKey(context.Background(), "key-1")

	_, err := svc.CreateOrder(ctx, oneRosa())
	require.ErrorIs(t, err, entity.ErrInsufficientStock)
	assert.Empty(t, c.data)

	require.NoError(t, store.UpsertProducts(ctx, []entity.Product{product("p1", "Rosa", "10.00", 1)}))
	_, err = svc.CreateOrder(ctx, oneRosa())
	require.NoError(t, err)
}

func TestIdempotentOrderService_PassThrough(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		c := newMapCache()
		svc, store := newIdempotent(t, c, 5)

		_, err := svc.CreateOrder(context.Background(), oneRosa())
		require.NoError(t, err)
		_, err = svc.CreateOrder(context.Background(), oneRosa())
		require.NoError(t, err)

		stock, _ := store.Stock("p1")
		assert.Equal(t, 3, stock)
		assert.Empty(t, c.data)
	})

	t.Run("cache down", func(t *testing.T) {
		c := newMapCache()
		c.err = errors.New("dial tcp: connection refused")
		svc, _ := newIdempotent(t, c, 5)
		ctx := requestmeta.WithIdempotencyKey(context.Background(), "key-1")

		_, err := svc.CreateOrder(ctx, oneRosa())
		require.NoError(t, err)
	})
}
