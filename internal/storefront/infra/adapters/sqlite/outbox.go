package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jcmexdev/regaloshop/internal/storefront/core/domain/entity"
)

func (s *Store) FetchPendingEvents(ctx context.Context, limit int) ([]entity.OutboxEvent, error) {
	const q = `
		SELECT id, event_id, topic, msg_key, payload, created_at
		FROM   outbox_events
		WHERE  sent_at IS NULL
		ORDER  BY id
		LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetch outbox: %w", err)
	}
	defer rows.Close()

	var out []entity.OutboxEvent
	for rows.Next() {
		var (
			evt       entity.OutboxEvent
			payload   string
			createdAt string
		)
		if err := rows.Scan(&evt.ID, &evt.EventID, &evt.Topic, &evt.Key, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan outbox event: %w", err)
		}
		evt.Payload = json.RawMessage(payload)
		if evt.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func (s *Store) MarkEventSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox_events SET sent_at = ? WHERE id = ? AND sent_at IS NULL`, formatTime(nowFunc()), id)
	if err != nil {
		return fmt.Errorf("sqlite: mark event %d sent: %w", id, err)
	}
	return nil
}
