package postgres

import (
	"context"
	"fmt"
	"time"
)

const (
	insertEscalationQuery = `INSERT INTO escalations(request_id, threshold_minutes, fired_at) VALUES ($1,$2,$3)
ON CONFLICT (request_id, threshold_minutes) DO NOTHING`
	selectEscalationsQuery = `SELECT threshold_minutes FROM escalations WHERE request_id=$1 ORDER BY threshold_minutes`
)

// MarkEscalated records a fired level; false means it was already recorded.
func (p *Postgres) MarkEscalated(ctx context.Context, requestID string, thresholdMinutes int, at time.Time) (bool, error) {
	tag, err := p.db.Exec(ctx, insertEscalationQuery, requestID, thresholdMinutes, at)
	if err != nil {
		p.log.Errorw("failed to insert escalation", "error", err, "request_id", requestID, "threshold", thresholdMinutes)
		return false, fmt.Errorf("mark escalated: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FiredEscalations lists thresholds already fired for a request.
func (p *Postgres) FiredEscalations(ctx context.Context, requestID string) ([]int, error) {
	rows, err := p.db.Query(ctx, selectEscalationsQuery, requestID)
	if err != nil {
		return nil, fmt.Errorf("select escalations: %w", err)
	}
	defer rows.Close()

	fired := make([]int, 0)
	for rows.Next() {
		var threshold int
		if err := rows.Scan(&threshold); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		fired = append(fired, threshold)
	}
	return fired, rows.Err()
}
