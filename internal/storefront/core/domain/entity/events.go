package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated = "order.created"
)

// OutboxEvent is a domain event persisted in the same transaction as the
// state change it describes and relayed to the broker afterwards.
type OutboxEvent struct {
	ID        int64
	EventID   string
	Topic     string
	Key       string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}

type OrderCreatedLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type OrderCreated struct {
	EventID   string             `json:"event_id"`
	OrderID   string             `json:"order_id"`
	Email     string             `json:"customer_email"`
	Items     []OrderCreatedLine `json:"items"`
	Subtotal  string             `json:"subtotal"`
	Shipping  string             `json:"shipping_cost"`
	Total     string             `json:"total"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewOrderCreatedEvent builds the outbox record announcing o.
func NewOrderCreatedEvent(o *Order) (OutboxEvent, error) {
	lines := make([]OrderCreatedLine, len(o.Items))
	for i, it := range o.Items {
		lines[i] = OrderCreatedLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price.String(),
		}
	}
	evt := OrderCreated{
		EventID:   uuid.NewString(),
		OrderID:   o.ID,
		Email:     o.Customer.Email,
		Items:     lines,
		Subtotal:  o.Subtotal.StringFixed(2),
		Shipping:  o.ShippingCost.StringFixed(2),
		Total:     o.Total.StringFixed(2),
		CreatedAt: o.CreatedAt,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return OutboxEvent{}, err
	}
	return OutboxEvent{
		EventID:   evt.EventID,
		Topic:     EventOrderCreated,
		Key:       o.ID,
		Payload:   data,
		CreatedAt: o.CreatedAt,
	}, nil
}
