package service_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/regaloshop/internal/checkoutlog"
	"github.com/jcmexdev/regaloshop/internal/pkg/requestmeta"
	"github.com/jcmexdev/regaloshop/internal/pkg/telemetry"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/service"
	"github.com/jcmexdev/regaloshop/internal/storefront/infra/adapters/memory"
)

func product(id, name, price string, stock int) entity.Product {
	return entity.Product{
		ID:       id,
		Name:     name,
		Category: "flores",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	}
}

func customer() entity.Customer {
	return entity.Customer{Name: "Ana", Email: "ana@example.com", Address: "Calle 1"}
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("order-%d", s.n)
}

type recordingLog struct {
	mu      sync.Mutex
	entries []checkoutlog.Entry
}

func (r *recordingLog) Save(_ context.Context, e *checkoutlog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

type recordingInvalidator struct {
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ids ...string) {
	r.ids = append(r.ids, ids...)
}

func newEngine(t *testing.T, store *memory.Store, opts ...service.Option) *service.OrderEngine {
	t.Helper()
	base := []service.Option{
		service.WithIDGenerator(&seqIDs{}),
		service.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	}
	return service.NewOrderEngine(store, store, append(base, opts...)...)
}

func TestCreateOrder_Success(t *testing.T) {
	store := memory.NewStore(
		product("p1", "Rosa", "25.00", 10),
		product("p2", "Tulipán", "30.00", 5),
	)
	engine := newEngine(t, store)

	order, err := engine.CreateOrder(context.Background(), entity.OrderRequest{
		Customer: customer(),
		Items: []entity.ItemRequest{
			{ProductID: "p2", Quantity: 1},
			{ProductID: "p1", Quantity: 2},
		},
		Notes: "  gift wrap ",
	})
	require.NoError(t, err)

	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, entity.StatusPending, order.Status)
	assert.Equal(t, "gift wrap", order.Notes)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "p2", order.Items[0].ProductID)
	assert.Equal(t, "Tulipán", order.Items[0].Name)
	assert.Equal(t, "p1", order.Items[1].ProductID)
	assert.Equal(t, "50.00", order.Items[1].Subtotal.StringFixed(2))
	assert.Equal(t, "80.00", order.Subtotal.StringFixed(2))
	assert.True(t, order.ShippingCost.IsZero())
	assert.Equal(t, "80.00", order.Total.StringFixed(2))

	stock, _ := store.Stock("p1")
	assert.Equal(t, 8, stock)
	stock, _ = store.Stock("p2")
	assert.Equal(t, 4, stock)

	orders, err := engine.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
	assert.Len(t, orders[0].Items, 2)
}

func TestCreateOrder_ShippingBelowThreshold(t *testing.T) {
	store := memory.NewStore(product("p1", "Vela", "79.99", 3))
	engine := newEngine(t, store)

	order, err := engine.CreateOrder(context.Background(), entity.OrderRequest{
		Customer: customer(),
		Items:    []entity.ItemRequest{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "6.99", order.ShippingCost.StringFixed(2))
	assert.Equal(t, "86.98", order.Total.StringFixed(2))
}

func TestCreateOrder_DuplicateLinesAggregate(t *testing.T) {
	store := memory.NewStore(product("p1", "Rosa", "10.00", 3))
	engine := newEngine(t, store)

	_, err := engine.CreateOrder(context.Background(), entity.OrderRequest{
		Customer: customer(),
		Items: []entity.ItemRequest{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p1", Quantity: 2},
		},
	})
	var stockErr *entity.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)

	stock, _ := store.Stock("p1")
	assert.Equal(t, 3, stock)

	order, err := engine.CreateOrder(context.Background(), entity.OrderRequest{
		Customer: customer(),
		Items: []entity.ItemRequest{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "p1", Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Len(t, order.Items, 2)
	stock, _ = store.Stock("p1")
	assert.Equal(t, 0, stock)
}

func TestCreateOrder_RejectionsLeaveNoTrace(t *testing.T) {
	tests := map[string]struct {
		items []entity.ItemRequest
		want  error
	}{
		"unknown product": {
			items: []entity.ItemRequest{{ProductID: "p1", Quantity: 1}, {ProductID: "nope", Quantity: 1}},
			want:  entity.ErrNotFound,
		},
		"not enough stock": {
			items: []entity.ItemRequest{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 6}},
			want:  entity.ErrInsufficientStock,
		},
		"invalid quantity": {
			items: []entity.ItemRequest{{ProductID: "p1", Quantity: 0}},
			want:  entity.ErrValidation,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			store := memory.NewStore(product("p1", "Rosa", "10.00", 5), product("p2", "Lirio", "12.00", 5))
			engine := newEngine(t, store)

			order, err := engine.CreateOrder(context.Background(), entity.OrderRequest{Customer: customer(), Items: tt.items})
			assert.Nil(t, order)
			assert.ErrorIs(t, err, tt.want)

			for _, id := range []string{"p1", "p2"} {
				stock, _ := store.Stock(id)
				assert.Equal(t, 5, stock, id)
			}
			orders, err := engine.ListOrders(context.Background())
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}

func TestCreateOrder_NotFoundNamesFirstMissingProduct(t *testing.T) {
	store := memory.NewStore(product("p1", "Rosa", "10.00", 5))
	engine := newEngine(t, store)

	_, err := engine.CreateOrder(context.Background(), entity.OrderRequest{
		Customer: customer(),
		Items: []entity.ItemRequest{
			{ProductID: "zz", Quantity: 1},
			{ProductID: "aa", Quantity: 1},
		},
	})
	var nf *entity.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "zz", nf.ProductID)
	assert.Equal(t, "product not found: zz", nf.Error())
}

func TestCreateOrder_PriceSnapshot(t *testing.T) {
	store := memory.NewStore(product("p1", "Rosa", "10.00", 5))
	engine := newEngine(t, store)
	ctx := context.Background()

	_, err := engine.CreateOrder(ctx, entity.OrderRequest{
		Customer: customer(),
		Items:    []entity.ItemRequest{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	repriced := product("p1", "Rosa roja", "99.00", 4)
	require.NoError(t, store.UpsertProducts(ctx, []entity.Product{repriced}))

	orders, err := engine.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "Rosa", orders[0].Items[0].Name)
	assert.Equal(t, "10.00", orders[0].Items[0].Price.StringFixed(2))
}

func TestCreateOrder_ConcurrentBuyersNeverOversell(t *testing.T) {
	store := memory.NewStore(product("p1", "Última", "20.00", 3))
	engine := newEngine(t, store)

	const buyers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CreateOrder(context.Background(), entity.OrderRequest{
				Customer: customer(),
				Items:    []entity.ItemRequest{{ProductID: "p1", Quantity: 1}},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if errors.Is(err, entity.ErrInsufficientStock) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, buyers-3, rejected)
	stock, _ := store.Stock("p1")
	assert.Equal(t, 0, stock)

	orders, err := engine.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

func TestListOrders_NewestFirst(t *testing.T) {
	store := memory.NewStore(product("p1", "Rosa", "10.00", 10))
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := service.NewOrderEngine(store, store,
		service.WithIDGenerator(&seqIDs{}),
		service.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
	)
	ctx := context.Background()

	for range 3 {
		_, err := engine.CreateOrder(ctx, entity.OrderRequest{
			Customer: customer(),
			Items:    []entity.ItemRequest{{ProductID: "p1", Quantity: 1}},
		})
		require.NoError(t, err)
	}

	orders, err := engine.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, []string{"order-3", "order-2", "order-1"}, []string{orders[0].ID, orders[1].ID, orders[2].ID})
}

func TestListOrders_EmptyIsNotNil(t *testing.T) {
	engine := newEngine(t, memory.NewStore())
	orders, err := engine.ListOrders(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

// countingTx wraps a real transaction and counts decrements per product.
type countingTxManager struct {
	inner      ports.TxManager
	decrements map[string]int
}

type countingTx struct {
	ports.Tx
	counts map[string]int
}

func (c *countingTx) DecrementStockIfSufficient(ctx context.Context, id string, amount int) (int64, error) {
	c.counts[id]++
	return c.Tx.DecrementStockIfSufficient(ctx, id, amount)
}

func (m *countingTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	return m.inner.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return fn(ctx, &countingTx{Tx: tx, counts: m.decrements})
	})
}

func TestCreateOrder_OneDecrementPerProduct(t *testing.T) {
	store := memory.NewStore(product("p1", "Rosa", "10.00", 10), product("p2", "Lirio", "5.00", 10))
	txm := &countingTxManager{inner: store, decrements: map[string]int{}}
	engine := service.NewOrderEngine(txm, store)

	_, err := engine.CreateOrder(context.Background(), entity.OrderRequest{
		Customer: customer(),
		Items: []entity.ItemRequest{
			{ProductID: "p1", Quantity: 1},
			{ProductID: "p2", Quantity: 1},
			{ProductID: "p1", Quantity: 4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"p1": 1, "p2": 1}, txm.decrements)

	stock, _ := store.Stock("p1")
	assert.Equal(t, 5, stock)
}

type failingTxManager struct{ err error }

func (f failingTxManager) WithinTx(context.Context, func(context.Context, ports.Tx) error) error {
	return f.err
}

func TestCreateOrder_StorageFaultBecomesTransactionFailure(t *testing.T) {
	audit := &recordingLog{}
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewCheckoutMetrics(reg)
	engine := service.NewOrderEngine(failingTxManager{err: errors.New("connection reset")}, memory.NewStore(),
		service.WithCheckoutLog(audit),
		service.WithMetrics(metrics),
	)

	_, err := engine.CreateOrder(context.Background(), entity.OrderRequest{
		Customer: customer(),
		Items:    []entity.ItemRequest{{ProductID: "p1", Quantity: 1}},
	})
	var tf *entity.TransactionFailure
	require.ErrorAs(t, err, &tf)
	assert.False(t, tf.Retryable)
	assert.Contains(t, tf.Error(), "connection reset")

	require.Len(t, audit.entries, 2)
	assert.Equal(t, checkoutlog.StatusStarted, audit.entries[0].Status)
	assert.Equal(t, checkoutlog.StatusFailed, audit.entries[1].Status)
	assert.Equal(t, audit.entries[0].AttemptID, audit.entries[1].AttemptID)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Attempts.WithLabelValues(telemetry.OutcomeFailed)))
}

func TestCreateOrder_AuditMetricsAndInvalidation(t *testing.T) {
	store := memory.NewStore(product("p1", "Rosa", "10.00", 2))
	audit := &recordingLog{}
	inv := &recordingInvalidator{}
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewCheckoutMetrics(reg)
	engine := newEngine(t, store,
		service.WithCheckoutLog(audit),
		service.WithMetrics(metrics),
		service.WithCatalogInvalidator(inv),
		service.WithOutboxEvents(true),
	)
	ctx := requestmeta.WithRequestID(context.Background(), "req-42")

	order, err := engine.CreateOrder(ctx, entity.OrderRequest{
		Customer: customer(),
		Items:    []entity.ItemRequest{{ProductID: "p1", Quantity: 2}},
	})
	require.NoError(t, err)

	_, err = engine.CreateOrder(ctx, entity.OrderRequest{
		Customer: customer(),
		Items:    []entity.ItemRequest{{ProductID: "p1", Quantity: 1}},
	})
	require.ErrorIs(t, err, entity.ErrInsufficientStock)

	require.Len(t, audit.entries, 4)
	assert.Equal(t, checkoutlog.StatusCompleted, audit.entries[1].Status)
	assert.Equal(t, order.ID, audit.entries[1].OrderID)
	assert.Equal(t, "req-42", audit.entries[1].RequestID)
	assert.Equal(t, checkoutlog.StatusRejected, audit.entries[3].Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Attempts.WithLabelValues(telemetry.OutcomeCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Attempts.WithLabelValues(telemetry.OutcomeInsufficientStock)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.UnitsSold))

	assert.Equal(t, []string{"p1"}, inv.ids)

	events, err := store.FetchPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventOrderCreated, events[0].Topic)
	assert.Equal(t, order.ID, events[0].Key)
}

func TestCreateOrder_QuantityOverflowRejected(t *testing.T) {
	store := memory.NewStore(product("p1", "Rosa", "1.00", 5))
	engine := newEngine(t, store)

	_, err := engine.CreateOrder(context.Background(), entity.OrderRequest{
		Customer: customer(),
		Items: []entity.ItemRequest{
			{ProductID: "p1", Quantity: math.MaxInt},
			{ProductID: "p1", Quantity: 2},
		},
	})
	require.ErrorIs(t, err, entity.ErrValidation)

	stock, _ := store.Stock("p1")
	assert.Equal(t, 5, stock)
	orders, err := engine.ListOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrder_InvalidatesTrimmedProductIDs(t *testing.T) {
	store := memory.NewStore(product("p1", "Rosa", "10.00", 5))
	inv := &recordingInvalidator{}
	engine := newEngine(t, store, service.WithCatalogInvalidator(inv))

	_, err := engine.CreateOrder(context.Background(), entity.OrderRequest{
		Customer: customer(),
		Items: []entity.ItemRequest{
			{ProductID: " p1 ", Quantity: 1},
			{ProductID: "p1", Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"p1"}, inv.ids)
	stock, _ := store.Stock("p1")
	assert.Equal(t, 3, stock)
}
