package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
)

type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// ItemRequest is one line of a purchase intent as submitted by the caller.
type ItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest is the validated-shape input of CreateOrder.
type OrderRequest struct {
	Customer Customer
	Items    []ItemRequest
	Notes    string
}

type Order struct {
	ID           string
	CreatedAt    time.Time
	Customer     Customer
	Items        []OrderItem
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Total        decimal.Decimal
	Status       OrderStatus
	Notes        string
}

// OrderItem is a line of a placed order. Name and Price are snapshots taken
// when the order was created and never follow later catalog changes.
type OrderItem struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Subtotal  decimal.Decimal
}

// NewOrderItem snapshots p into an order line.
func NewOrderItem(p Product, quantity int) OrderItem {
	return OrderItem{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  quantity,
		Subtotal:  LineSubtotal(p.Price, quantity),
	}
}

// AggregateQuantities sums the requested quantity per product id. The
// returned ids keep the order in which each product first appears. Callers
// run Validate first, which keeps every sum within MaxQuantity.
func AggregateQuantities(items []ItemRequest) ([]string, map[string]int) {
	ids := make([]string, 0, len(items))
	byProduct := make(map[string]int, len(items))
	for _, it := range items {
		if _, seen := byProduct[it.ProductID]; !seen {
			ids = append(ids, it.ProductID)
		}
		byProduct[it.ProductID] += it.Quantity
	}
	return ids, byProduct
}
