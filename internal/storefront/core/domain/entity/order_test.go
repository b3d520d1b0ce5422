package entity

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() OrderRequest {
	return OrderRequest{
		Customer: Customer{Name: "Ana", Email: "ana@example.com", Address: "Calle 1"},
		Items:    []ItemRequest{{ProductID: "p1", Quantity: 1}},
	}
}

func TestOrderRequest_Validate(t *testing.T) {
	require.NoError(t, validRequest().Validate())

	tests := map[string]struct {
		mutate func(r *OrderRequest)
		field  string
	}{
		"missing name":    {func(r *OrderRequest) { r.Customer.Name = "" }, "customer.name"},
		"blank email":     {func(r *OrderRequest) { r.Customer.Email = "   " }, "customer.email"},
		"missing address": {func(r *OrderRequest) { r.Customer.Address = "" }, "customer.address"},
		"no items":        {func(r *OrderRequest) { r.Items = nil }, "items"},
		"missing product": {func(r *OrderRequest) { r.Items[0].ProductID = "" }, "items[0].productId"},
		"zero quantity":   {func(r *OrderRequest) { r.Items[0].Quantity = 0 }, "items[0].quantity"},
		"negative second": {func(r *OrderRequest) { r.Items = append(r.Items, ItemRequest{"p2", -1}) }, "items[1].quantity"},
		"line over limit": {func(r *OrderRequest) { r.Items[0].Quantity = MaxQuantity + 1 }, "items[0].quantity"},
		"max int line":    {func(r *OrderRequest) { r.Items[0].Quantity = math.MaxInt }, "items[0].quantity"},
		"product total over limit": {func(r *OrderRequest) {
			r.Items = []ItemRequest{{"p1", MaxQuantity}, {" p1 ", 1}}
		}, "items[1].quantity"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestOrderRequest_ValidateAtLimit(t *testing.T) {
	r := validRequest()
	r.Items = []ItemRequest{{"p1", MaxQuantity - 1}, {"p2", MaxQuantity}, {"p1", 1}}
	assert.NoError(t, r.Validate())
}

func TestAggregateQuantities(t *testing.T) {
	ids, qty := AggregateQuantities([]ItemRequest{
		{ProductID: "b", Quantity: 2},
		{ProductID: "a", Quantity: 1},
		{ProductID: "b", Quantity: 3},
	})

	assert.Equal(t, []string{"b", "a"}, ids)
	assert.Equal(t, map[string]int{"a": 1, "b": 5}, qty)
}

func TestErrorKinds(t *testing.T) {
	stock := &InsufficientStockError{ProductID: "p1", Name: "Taza"}
	assert.True(t, errors.Is(stock, ErrInsufficientStock))
	assert.Equal(t, "insufficient stock for Taza", stock.Error())

	nf := &NotFoundError{ProductID: "ghost"}
	assert.True(t, errors.Is(nf, ErrNotFound))
	assert.Contains(t, nf.Error(), "ghost")

	cause := errors.New("deadlock detected")
	tf := NewTransactionFailure("create order", cause, true)
	assert.True(t, errors.Is(tf, ErrTransactionFailure))
	assert.True(t, errors.Is(tf, cause))
	assert.True(t, IsRetryable(tf))
	assert.False(t, IsRetryable(cause))

	assert.True(t, IsDomainError(stock))
	assert.False(t, IsDomainError(cause))
}

func TestNewOrderCreatedEvent(t *testing.T) {
	o := &Order{
		ID:       "o1",
		Customer: Customer{Email: "ana@example.com"},
		Items:    []OrderItem{NewOrderItem(Product{ID: "p1", Price: dec("2.50")}, 2)},
		Subtotal: dec("5"), ShippingCost: dec("6.99"), Total: dec("11.99"),
	}

	evt, err := NewOrderCreatedEvent(o)
	require.NoError(t, err)
	assert.Equal(t, EventOrderCreated, evt.Topic)
	assert.Equal(t, "o1", evt.Key)
	assert.NotEmpty(t, evt.EventID)
	assert.Contains(t, string(evt.Payload), `"total":"11.99"`)
	assert.Contains(t, string(evt.Payload), `"product_id":"p1"`)
}
