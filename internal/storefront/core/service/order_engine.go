package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/regaloshop/internal/checkoutlog"
	"github.com/jcmexdev/regaloshop/internal/pkg/requestmeta"
	"github.com/jcmexdev/regaloshop/internal/pkg/telemetry"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
)

// Ensure OrderEngine implements the port at compile time.
var _ ports.OrderService = (*OrderEngine)(nil)

// UUIDGenerator issues random (v4) identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

// OrderEngine turns a purchase intent into a persisted order. It is the only
// writer of stock decrements and order rows.
type OrderEngine struct {
	txm      ports.TxManager
	reader   ports.OrderReader
	ids      ports.IDGenerator
	now      func() time.Time
	shipping entity.ShippingPolicy
	audit    checkoutlog.Repository
	metrics  *telemetry.CheckoutMetrics
	catalog  ports.CatalogInvalidator
	events   bool
	tracer   trace.Tracer
}

type Option func(*OrderEngine)

func WithShippingPolicy(p entity.ShippingPolicy) Option {
	return func(e *OrderEngine) { e.shipping = p }
}

// WithCheckoutLog records every attempt in repo. A nil repo disables it.
func WithCheckoutLog(repo checkoutlog.Repository) Option {
	return func(e *OrderEngine) { e.audit = repo }
}

func WithMetrics(m *telemetry.CheckoutMetrics) Option {
	return func(e *OrderEngine) { e.metrics = m }
}

// WithCatalogInvalidator drops cached products once their stock changed.
func WithCatalogInvalidator(c ports.CatalogInvalidator) Option {
	return func(e *OrderEngine) { e.catalog = c }
}

// WithOutboxEvents makes every order enqueue an order.created event inside
// its transaction.
func WithOutboxEvents(enabled bool) Option {
	return func(e *OrderEngine) { e.events = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(e *OrderEngine) { e.now = now }
}

func WithIDGenerator(g ports.IDGenerator) Option {
	return func(e *OrderEngine) { e.ids = g }
}

func NewOrderEngine(txm ports.TxManager, reader ports.OrderReader, opts ...Option) *OrderEngine {
	e := &OrderEngine{
		txm:      txm,
		reader:   reader,
		ids:      UUIDGenerator{},
		now:      time.Now,
		shipping: entity.DefaultShippingPolicy(),
		tracer:   otel.Tracer("github.com/jcmexdev/regaloshop/order-engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateOrder validates req, reserves stock and persists the order in a
// single transaction. It fails with *entity.ValidationError,
// *entity.NotFoundError, *entity.InsufficientStockError or
// *entity.TransactionFailure; on failure nothing is written.
func (e *OrderEngine) CreateOrder(ctx context.Context, req entity.OrderRequest) (*entity.Order, error) {
	ctx, span := e.tracer.Start(ctx, "OrderEngine.CreateOrder",
		trace.WithAttributes(attribute.Int("order.lines", len(req.Items))))
	defer span.End()

	attemptID := uuid.NewString()
	e.recordStart(ctx, attemptID, req)

	req = normalize(req)
	order, err := e.createOrder(ctx, req)

	e.recordOutcome(ctx, attemptID, order, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.total", order.Total.StringFixed(2)),
	)

	if e.catalog != nil {
		ids, _ := entity.AggregateQuantities(req.Items)
		e.catalog.Invalidate(ctx, ids...)
	}
	return order, nil
}

func (e *OrderEngine) createOrder(ctx context.Context, req entity.OrderRequest) (*entity.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ids, requested := entity.AggregateQuantities(req.Items)
	// Locks are always taken in id order so two orders over the same
	// products cannot deadlock each other.
	lockOrder := slices.Sorted(slices.Values(ids))

	var order *entity.Order
	err := e.txm.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		locked, err := tx.LockProductsForUpdate(ctx, lockOrder)
		if err != nil {
			return err
		}
		products := make(map[string]entity.Product, len(locked))
		for _, p := range locked {
			products[p.ID] = p
		}

		for _, id := range ids {
			p, ok := products[id]
			if !ok {
				return &entity.NotFoundError{ProductID: id}
			}
			if p.Stock < requested[id] {
				return &entity.InsufficientStockError{
					ProductID: id,
					Name:      p.Name,
					Requested: requested[id],
					Available: p.Stock,
				}
			}
		}

		items := make([]entity.OrderItem, len(req.Items))
		for i, it := range req.Items {
			items[i] = entity.NewOrderItem(products[it.ProductID], it.Quantity)
		}

		for _, id := range lockOrder {
			affected, err := tx.DecrementStockIfSufficient(ctx, id, requested[id])
			if err != nil {
				return err
			}
			if affected == 0 {
				p := products[id]
				return &entity.InsufficientStockError{
					ProductID: id,
					Name:      p.Name,
					Requested: requested[id],
					Available: p.Stock,
				}
			}
		}

		totals := e.shipping.Price(items)
		o := &entity.Order{
			ID:           e.ids.NewID(),
			CreatedAt:    e.now().UTC().Truncate(time.Microsecond),
			Customer:     req.Customer,
			Items:        items,
			Subtotal:     totals.Subtotal,
			ShippingCost: totals.ShippingCost,
			Total:        totals.Total,
			Status:       entity.StatusPending,
			Notes:        req.Notes,
		}

		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.InsertOrderItems(ctx, o.ID, o.Items); err != nil {
			return err
		}

		if e.events {
			evt, err := entity.NewOrderCreatedEvent(o)
			if err != nil {
				return err
			}
			if err := tx.EnqueueEvent(ctx, evt); err != nil {
				return err
			}
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, asTransactionFailure("create order", err)
	}

	units := 0
	for _, q := range requested {
		units += q
	}
	e.metrics.AddUnitsSold(units)
	return order, nil
}

// ListOrders returns every order, newest first. An empty store yields an
// empty, non-nil slice.
func (e *OrderEngine) ListOrders(ctx context.Context) ([]entity.Order, error) {
	ctx, span := e.tracer.Start(ctx, "OrderEngine.ListOrders")
	defer span.End()

	orders, err := e.reader.ListOrders(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, asTransactionFailure("list orders", err)
	}
	if orders == nil {
		orders = []entity.Order{}
	}
	return orders, nil
}

// asTransactionFailure passes domain errors through and wraps anything else.
func asTransactionFailure(op string, err error) error {
	if entity.IsDomainError(err) {
		return err
	}
	return entity.NewTransactionFailure(op, err, errors.Is(err, context.DeadlineExceeded))
}

func normalize(req entity.OrderRequest) entity.OrderRequest {
	req.Customer = entity.Customer{
		Name:    strings.TrimSpace(req.Customer.Name),
		Email:   strings.TrimSpace(req.Customer.Email),
		Address: strings.TrimSpace(req.Customer.Address),
	}
	items := make([]entity.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = entity.ItemRequest{ProductID: strings.TrimSpace(it.ProductID), Quantity: it.Quantity}
	}
	req.Items = items
	req.Notes = strings.TrimSpace(req.Notes)
	return req
}

type attemptPayload struct {
	Customer entity.Customer      `json:"customer"`
	Items    []entity.ItemRequest `json:"items"`
	Notes    string               `json:"notes,omitempty"`
}

func (e *OrderEngine) recordStart(ctx context.Context, attemptID string, req entity.OrderRequest) {
	if e.audit == nil {
		return
	}
	payload, _ := json.Marshal(attemptPayload{Customer: req.Customer, Items: req.Items, Notes: req.Notes})
	entry := checkoutlog.NewEntry(ctx, attemptID, checkoutlog.StatusStarted, requestmeta.RequestID(ctx), string(payload), nil)
	e.saveAudit(ctx, entry)
}

func (e *OrderEngine) recordOutcome(ctx context.Context, attemptID string, order *entity.Order, err error) {
	requestID := requestmeta.RequestID(ctx)
	status, outcome := classify(err)
	e.metrics.ObserveAttempt(outcome)

	switch status {
	case checkoutlog.StatusCompleted:
		slog.InfoContext(ctx, "order created",
			"order_id", order.ID,
			"request_id", requestID,
			"lines", len(order.Items),
			"total", order.Total.StringFixed(2),
		)
	case checkoutlog.StatusRejected:
		slog.WarnContext(ctx, "order rejected", "request_id", requestID, "reason", outcome, "error", err)
	default:
		slog.ErrorContext(ctx, "order transaction failed", "request_id", requestID, "error", err,
			"retryable", entity.IsRetryable(err))
	}

	if e.audit == nil {
		return
	}
	var errs []string
	if err != nil {
		errs = []string{err.Error()}
	}
	entry := checkoutlog.NewEntry(ctx, attemptID, status, requestID, "", errs)
	if order != nil {
		entry.OrderID = order.ID
	}
	e.saveAudit(ctx, entry)
}

func (e *OrderEngine) saveAudit(ctx context.Context, entry *checkoutlog.Entry) {
	// The audit row must land even if the client went away.
	if err := e.audit.Save(context.WithoutCancel(ctx), entry); err != nil {
		slog.ErrorContext(ctx, "failed to write checkout log", "attempt_id", entry.AttemptID, "error", err)
	}
}

func classify(err error) (checkoutlog.Status, string) {
	switch {
	case err == nil:
		return checkoutlog.StatusCompleted, telemetry.OutcomeCreated
	case errors.Is(err, entity.ErrValidation):
		return checkoutlog.StatusRejected, telemetry.OutcomeInvalid
	case errors.Is(err, entity.ErrNotFound):
		return checkoutlog.StatusRejected, telemetry.OutcomeNotFound
	case errors.Is(err, entity.ErrInsufficientStock):
		return checkoutlog.StatusRejected, telemetry.OutcomeInsufficientStock
	default:
		return checkoutlog.StatusFailed, telemetry.OutcomeFailed
	}
}
