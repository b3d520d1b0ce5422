package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
)

var nowFunc = time.Now

type tx struct {
	store  *Store
	stock  map[string]int
	orders []entity.Order
	items  map[string][]entity.OrderItem
	events []entity.OutboxEvent
	done   bool
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) (err error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return entity.NewTransactionFailure("begin transaction", ctx.Err(),
			errors.Is(ctx.Err(), context.DeadlineExceeded))
	}
	defer func() { <-s.writer }()

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return entity.NewTransactionFailure("begin transaction", ErrClosed, false)
	}

	t := &tx{
		store: s,
		stock: make(map[string]int),
		items: make(map[string][]entity.OrderItem),
	}
	// Staged writes are dropped unless commit runs, so a panic in fn leaves
	// the store untouched.
	defer func() { t.done = true }()

	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return entity.NewTransactionFailure("commit", err, errors.Is(err, context.DeadlineExceeded))
	}
	t.commit()
	return nil
}

func (t *tx) commit() {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, stock := range t.stock {
		p := s.products[id]
		p.Stock = stock
		s.products[id] = p
	}
	for _, o := range t.orders {
		o.Items = append(o.Items[:0:0], t.items[o.ID]...)
		s.orders = append(s.orders, o)
	}
	for _, evt := range t.events {
		s.nextEventID++
		evt.ID = s.nextEventID
		s.events = append(s.events, evt)
	}
}

func (t *tx) check() error {
	if t.done {
		return errors.New("memory: transaction already finished")
	}
	return nil
}

func (t *tx) LockProductsForUpdate(ctx context.Context, ids []string) ([]entity.Product, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	out := make([]entity.Product, 0, len(ids))
	for _, id := range ids {
		p, ok := t.store.products[id]
		if !ok {
			continue
		}
		p = cloneProduct(p)
		if staged, ok := t.stock[id]; ok {
			p.Stock = staged
		}
		out = append(out, p)
	}
	return out, nil
}

func (t *tx) DecrementStockIfSufficient(ctx context.Context, productID string, amount int) (int64, error) {
	if err := t.check(); err != nil {
		return 0, err
	}
	t.store.mu.RLock()
	p, ok := t.store.products[productID]
	t.store.mu.RUnlock()
	if !ok {
		return 0, nil
	}

	current := p.Stock
	if staged, ok := t.stock[productID]; ok {
		current = staged
	}
	if current < amount {
		return 0, nil
	}
	t.stock[productID] = current - amount
	return 1, nil
}

func (t *tx) InsertOrder(ctx context.Context, order *entity.Order) error {
	if err := t.check(); err != nil {
		return err
	}
	for _, o := range t.orders {
		if o.ID == order.ID {
			return fmt.Errorf("memory: duplicate order id %s", order.ID)
		}
	}
	o := *order
	o.Items = nil
	t.orders = append(t.orders, o)
	return nil
}

func (t *tx) InsertOrderItems(ctx context.Context, orderID string, items []entity.OrderItem) error {
	if err := t.check(); err != nil {
		return err
	}
	t.items[orderID] = append(t.items[orderID], items...)
	return nil
}

func (t *tx) EnqueueEvent(ctx context.Context, evt entity.OutboxEvent) error {
	if err := t.check(); err != nil {
		return err
	}
	t.events = append(t.events, evt)
	return nil
}
