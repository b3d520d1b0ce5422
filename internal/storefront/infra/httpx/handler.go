package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
)

// maxOrderBody caps the size of a checkout request body.
const maxOrderBody = 1 << 20

// Handler serves the order endpoints and the health check.
type Handler struct {
	orders ports.OrderService
	db     ports.Pinger // nil disables the database probe
	now    func() time.Time
}

// NewHandler wires the order service. db may be nil, in which case /health
// reports the database as skipped.
func NewHandler(orders ports.OrderService, db ports.Pinger) *Handler {
	return &Handler{orders: orders, db: db, now: time.Now}
}

// CreateOrder places an order and answers 201 with the stored order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOrderBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be a JSON order")
		return
	}

	orderReq, err := req.toEntity()
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), orderReq)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(*order))
}

// ListOrders returns every order, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	resp := make([]OrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health always answers 200 so that a load balancer keeps the instance while
// the database recovers; the body says whether it is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Timestamp: h.now().UTC()}

	if h.db == nil {
		resp.Database = "skipped"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		slog.ErrorContext(r.Context(), "health check could not reach the database", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		resp.Error = "database unreachable"
	} else {
		resp.Database = "reachable"
	}
	writeJSON(w, http.StatusOK, resp)
}
