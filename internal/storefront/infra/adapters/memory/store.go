// Package memory is an in-process Store used by tests and by local runs
// without a database. Write transactions are serialized; readers only ever
// see committed state.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
)

var _ ports.Store = (*Store)(nil)

var ErrClosed = errors.New("memory store closed")

type Store struct {
	// writer is a one-slot semaphore held for the life of a transaction.
	writer chan struct{}

	mu          sync.RWMutex
	products    map[string]entity.Product
	orders      []entity.Order
	events      []entity.OutboxEvent
	nextEventID int64
	closed      bool
}

func NewStore(products ...entity.Product) *Store {
	s := &Store{
		writer:   make(chan struct{}, 1),
		products: make(map[string]entity.Product, len(products)),
	}
	for _, p := range products {
		s.products[p.ID] = cloneProduct(p)
	}
	return s
}

// Stock returns the committed stock of id.
func (s *Store) Stock(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p.Stock, ok
}

func (s *Store) UpsertProducts(ctx context.Context, products []entity.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, p := range products {
		s.products[p.ID] = cloneProduct(p)
	}
	return nil
}

func (s *Store) ListOrders(ctx context.Context) ([]entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	// Newest insert first, then a stable sort keeps insertion order as the
	// tie-breaker for equal timestamps.
	out := make([]entity.Order, 0, len(s.orders))
	for i := len(s.orders) - 1; i >= 0; i-- {
		out = append(out, cloneOrder(s.orders[i]))
	}
	slices.SortStableFunc(out, func(a, b entity.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *Store) FetchPendingEvents(ctx context.Context, limit int) ([]entity.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []entity.OutboxEvent
	for _, evt := range s.events {
		if evt.SentAt != nil {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkEventSent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			now := nowFunc().UTC()
			s.events[i].SentAt = &now
			return nil
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneProduct(p entity.Product) entity.Product {
	p.Tags = slices.Clone(p.Tags)
	return p
}

func cloneOrder(o entity.Order) entity.Order {
	o.Items = slices.Clone(o.Items)
	return o
}
