// Package events delivers the transactional outbox to a message broker.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/jcmexdev/regaloshop/internal/pkg/telemetry"
	"github.com/jcmexdev/regaloshop/internal/storefront/core/ports"
)

const (
	relayPublished = "published"
	relayFailed    = "failed"
)

// Relay polls the outbox and hands pending events to a publisher. Delivery is
// at-least-once: an event is marked sent only after Publish succeeded.
type Relay struct {
	store     ports.OutboxStore
	publisher ports.EventPublisher
	interval  time.Duration
	batch     int
	metrics   *telemetry.CheckoutMetrics
}

func NewRelay(store ports.OutboxStore, publisher ports.EventPublisher, interval time.Duration, batch int, metrics *telemetry.CheckoutMetrics) *Relay {
	return &Relay{store: store, publisher: publisher, interval: interval, batch: batch, metrics: metrics}
}

// Run drains the outbox every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "outbox relay started", "interval", r.interval, "batch", r.batch)
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "outbox relay pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("outbox relay stopped")
			return
		case <-ticker.C:
		}
	}
}

// Start runs the relay in a goroutine. The returned stop cancels it and
// waits for an in-flight Flush to finish, so the store and publisher can be
// closed right after.
func (r *Relay) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// Flush publishes one batch of pending events in outbox order. It stops at
// the first publish failure so that later events are not delivered ahead of
// an earlier one.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	pending, err := r.store.FetchPendingEvents(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, evt := range pending {
		if err := r.publisher.Publish(ctx, evt); err != nil {
			r.metrics.ObserveRelay(relayFailed)
			slog.WarnContext(ctx, "publish outbox event failed", "event_id", evt.EventID, "topic", evt.Topic, "error", err)
			return sent, nil
		}
		if err := r.store.MarkEventSent(ctx, evt.ID); err != nil {
			return sent, err
		}
		r.metrics.ObserveRelay(relayPublished)
		sent++
	}
	return sent, nil
}
