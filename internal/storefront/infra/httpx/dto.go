package httpx

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

type CreateOrderRequest struct {
	Customer entity.Customer      `json:"customer"`
	Items    []CreateOrderItemDTO `json:"items"`
	Notes    string               `json:"notes"`
}

// CreateOrderItemDTO keeps quantity as a raw number so that 1.5 or 1e2 is
// reported as a validation error instead of a decode error.
type CreateOrderItemDTO struct {
	ProductID string      `json:"productId"`
	Quantity  json.Number `json:"quantity"`
}

func (r CreateOrderRequest) toEntity() (entity.OrderRequest, error) {
	items := make([]entity.ItemRequest, len(r.Items))
	for i, it := range r.Items {
		qty, err := strconv.Atoi(it.Quantity.String())
		if err != nil {
			return entity.OrderRequest{}, &entity.ValidationError{
				Field:  "items[" + strconv.Itoa(i) + "].quantity",
				Reason: "must be a positive integer",
			}
		}
		items[i] = entity.ItemRequest{ProductID: it.ProductID, Quantity: qty}
	}
	return entity.OrderRequest{Customer: r.Customer, Items: items, Notes: r.Notes}, nil
}

// money renders an amount as a JSON number with exactly two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type OrderResponse struct {
	ID           string              `json:"id"`
	CreatedAt    string              `json:"createdAt"`
	Customer     entity.Customer     `json:"customer"`
	Items        []OrderItemResponse `json:"items"`
	Subtotal     json.Number         `json:"subtotal"`
	ShippingCost json.Number         `json:"shippingCost"`
	Total        json.Number         `json:"total"`
	Notes        string              `json:"notes"`
	Status       string              `json:"status"`
}

type OrderItemResponse struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
	Subtotal  json.Number `json:"subtotal"`
}

func toOrderResponse(o entity.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     money(it.Price),
			Quantity:  it.Quantity,
			Subtotal:  money(it.Subtotal),
		}
	}
	return OrderResponse{
		ID:           o.ID,
		CreatedAt:    o.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Customer:     o.Customer,
		Items:        items,
		Subtotal:     money(o.Subtotal),
		ShippingCost: money(o.ShippingCost),
		Total:        money(o.Total),
		Notes:        o.Notes,
		Status:       string(o.Status),
	}
}

type ProductResponse struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Price       json.Number `json:"price"`
	Stock       int         `json:"stock"`
	Image       string      `json:"image"`
	Tags        []string    `json:"tags"`
}

func toProductResponse(p entity.Product) ProductResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       money(p.Price),
		Stock:       p.Stock,
		Image:       p.Image,
		Tags:        tags,
	}
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
