package postgres

import (
	"context"
	"fmt"

	"facility-maintenance/internal/entities"
)

const (
	insertDeliveryFailureQuery = `INSERT INTO delivery_failures(event_id, event_type, request_id, channel, recipient, attempts, last_error, failed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	selectDeliveryFailuresQuery = `SELECT event_id, event_type, request_id, channel, recipient, attempts, last_error, failed_at
FROM delivery_failures WHERE request_id=$1 ORDER BY failed_at`
)

// RecordDeliveryFailure stores a notification that exhausted its retries.
func (p *Postgres) RecordDeliveryFailure(ctx context.Context, f entities.DeliveryFailure) error {
	if _, err := p.db.Exec(ctx, insertDeliveryFailureQuery,
		f.EventID, string(f.EventType), f.RequestID, string(f.Channel), f.Recipient, f.Attempts, f.LastError, f.FailedAt,
	); err != nil {
		p.log.Errorw("failed to insert delivery failure", "error", err, "event_id", f.EventID)
		return fmt.Errorf("record delivery failure: %w", err)
	}
	return nil
}

// ListDeliveryFailures returns failures recorded for a request.
func (p *Postgres) ListDeliveryFailures(ctx context.Context, requestID string) ([]entities.DeliveryFailure, error) {
	rows, err := p.db.Query(ctx, selectDeliveryFailuresQuery, requestID)
	if err != nil {
		return nil, fmt.Errorf("select delivery failures: %w", err)
	}
	defer rows.Close()

	out := make([]entities.DeliveryFailure, 0)
	for rows.Next() {
		var (
			f         entities.DeliveryFailure
			eventType string
			channel   string
		)
		if err := rows.Scan(&f.EventID, &eventType, &f.RequestID, &channel, &f.Recipient, &f.Attempts, &f.LastError, &f.FailedAt); err != nil {
			return nil, fmt.Errorf("scan delivery failure: %w", err)
		}
		f.EventType = entities.EventType(eventType)
		f.Channel = entities.Channel(channel)
		out = append(out, f)
	}
	return out, rows.Err()
}
