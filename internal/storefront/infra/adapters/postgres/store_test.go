package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/service"
)

// openTestStore connects to STOREFRONT_TEST_DATABASE_URL. The tests write to
// that database, so point it at a disposable one.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("STOREFRONT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("STOREFRONT_TEST_DATABASE_URL not set")
	}
	s, err := Open(context.Background(), dsn, Options{MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProduct(t *testing.T, s *Store, price string, stock int) string {
	t.Helper()
	id := "test-" + uuid.NewString()
	require.NoError(t, s.UpsertProducts(context.Background(), []entity.Product{{
		ID:       id,
		Name:     "Producto " + id[5:13],
		Category: "pruebas",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Tags:     []string{"test"},
	}}))
	return id
}

func TestOrderEngineOnPostgres(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := seedProduct(t, s, "10.005", 5)
	engine := service.NewOrderEngine(s, s, service.WithOutboxEvents(true))

	order, err := engine.CreateOrder(ctx, entity.OrderRequest{
		Customer: entity.Customer{Name: "Ana", Email: "ana@example.com", Address: "Calle 1"},
		Items:    []entity.ItemRequest{{ProductID: id, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "30.03", order.Subtotal.StringFixed(2))

	p, err := s.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)
	assert.Equal(t, "10.005", p.Price.String())

	orders, err := engine.ListOrders(ctx)
	require.NoError(t, err)
	var found *entity.Order
	for i := range orders {
		if orders[i].ID == order.ID {
			found = &orders[i]
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.Items, 1)
	assert.True(t, found.Total.Equal(order.Total))
}

func TestOrderEngineOnPostgres_LastUnitRace(t *testing.T) {
	s := openTestStore(t)
	id := seedProduct(t, s, "5", 1)
	engine := service.NewOrderEngine(s, s)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CreateOrder(context.Background(), entity.OrderRequest{
				Customer: entity.Customer{Name: "Ana", Email: "ana@example.com", Address: "Calle 1"},
				Items:    []entity.ItemRequest{{ProductID: id, Quantity: 1}},
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, entity.ErrInsufficientStock)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Zero(t, p.Stock)
}

func TestGetProductNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetProduct(context.Background(), "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
