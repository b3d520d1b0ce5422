package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcmexdev/regaloshop/internal/pkg/cache"
	"github.com/jcmexdev/regaloshop/internal/pkg/requestmeta"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
)

var _ ports.OrderService = (*IdempotentOrderService)(nil)

// pendingMarker occupies an idempotency key while the first request holding
// it is still running.
const pendingMarker = "pending"

// IdempotentOrderService replays the order created by an earlier request
// carrying the same idempotency key instead of placing a second one.
type IdempotentOrderService struct {
	inner ports.OrderService
	cache cache.Cache
	ttl   time.Duration
}

// NewIdempotentOrderService decorates inner. With a nil cache it is a
// pass-through.
func NewIdempotentOrderService(inner ports.OrderService, c cache.Cache, ttl time.Duration) *IdempotentOrderService {
	return &IdempotentOrderService{inner: inner, cache: c, ttl: ttl}
}

type idempotentRecord struct {
	Fingerprint string       `json:"fingerprint"`
	Order       entity.Order `json:"order"`
}

func (s *IdempotentOrderService) CreateOrder(ctx context.Context, req entity.OrderRequest) (*entity.Order, error) {
	key := requestmeta.IdempotencyKey(ctx)
	if key == "" || s.cache == nil {
		return s.inner.CreateOrder(ctx, req)
	}

	cacheKey := s.cache.GenerateKey("idempotency", key)
	fingerprint := fingerprintRequest(req)

	acquired, err := s.cache.SetNX(ctx, cacheKey, pendingMarker, s.ttl)
	if err != nil {
		// Losing idempotency is preferable to refusing every checkout while
		// redis is down.
		slog.WarnContext(ctx, "idempotency cache unavailable, processing without it", "error", err)
		return s.inner.CreateOrder(ctx, req)
	}

	if !acquired {
		return s.replay(ctx, cacheKey, fingerprint)
	}

	order, err := s.inner.CreateOrder(ctx, req)
	if err != nil {
		if delErr := s.cache.Del(context.WithoutCancel(ctx), cacheKey); delErr != nil {
			slog.WarnContext(ctx, "failed to release idempotency key", "key", key, "error", delErr)
		}
		return nil, err
	}

	data, err := json.Marshal(idempotentRecord{Fingerprint: fingerprint, Order: *order})
	if err == nil {
		err = s.cache.Set(context.WithoutCancel(ctx), cacheKey, string(data), s.ttl)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to store idempotent response", "key", key, "order_id", order.ID, "error", err)
	}
	return order, nil
}

func (s *IdempotentOrderService) replay(ctx context.Context, cacheKey, fingerprint string) (*entity.Order, error) {
	stored, err := s.cache.Get(ctx, cacheKey)
	if err != nil {
		return nil, entity.NewTransactionFailure("idempotency lookup", err, true)
	}
	if stored == "" || stored == pendingMarker {
		return nil, entity.ErrIdempotencyInUse
	}

	var rec idempotentRecord
	if err := json.Unmarshal([]byte(stored), &rec); err != nil {
		return nil, fmt.Errorf("idempotency: decode stored order: %w", err)
	}
	if rec.Fingerprint != fingerprint {
		return nil, &entity.ValidationError{
			Field:  requestmeta.HeaderIdempotencyKey,
			Reason: "key was already used for a different request",
		}
	}

	slog.InfoContext(ctx, "replaying idempotent order", "order_id", rec.Order.ID)
	return &rec.Order, nil
}

func (s *IdempotentOrderService) ListOrders(ctx context.Context) ([]entity.Order, error) {
	return s.inner.ListOrders(ctx)
}

func fingerprintRequest(req entity.OrderRequest) string {
	req = normalize(req)
	data, _ := json.Marshal(attemptPayload{Customer: req.Customer, Items: req.Items, Notes: req.Notes})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
