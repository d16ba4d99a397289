package repository

import "context"

const insertProcessedWebhookEvent = `-- name: InsertProcessedWebhookEvent :execrows
INSERT INTO processed_webhook_events (event_id, event_type)
VALUES ($1, $2)
ON CONFLICT (event_id) DO NOTHING`

type InsertProcessedWebhookEventParams struct {
	EventID   string
	EventType string
}

// InsertProcessedWebhookEvent records an event id. It returns 0 when the id
// was already recorded, which callers treat as a duplicate delivery.
func (q *Queries) InsertProcessedWebhookEvent(ctx context.Context, arg InsertProcessedWebhookEventParams) (int64, error) {
	tag, err := q.db.Exec(ctx, insertProcessedWebhookEvent, arg.EventID, arg.EventType)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
