package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

func (s *Store) FetchPendingEvents(ctx context.Context, limit int) ([]entity.OutboxEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, topic, key, payload, created_at FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []entity.OutboxEvent
	for rows.Next() {
		var (
			evt     entity.OutboxEvent
			payload []byte
		)
		if err := rows.Scan(&evt.ID, &evt.EventID, &evt.Topic, &evt.Key, &payload, &evt.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan outbox event: %w", err)
		}
		evt.Payload = json.RawMessage(payload)
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (s *Store) MarkEventSent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET sent_at = now() WHERE id = $1 AND sent_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("postgres: mark event %d sent: %w", id, err)
	}
	return nil
}
