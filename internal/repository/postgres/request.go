package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"facility-maintenance/internal/entities"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	requestColumns = `id::text, location, description, priority, submitter, phone, attachment_count,
assignee, notify_roles, sla_minutes, created_at, estimated_completion, current_status`

	insertRequestQuery = `INSERT INTO requests(id, location, description, priority, submitter, phone, attachment_count,
assignee, notify_roles, sla_minutes, created_at, estimated_completion, current_status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	insertHistoryQuery   = `INSERT INTO request_status_history(request_id, seq, status, note, actor, created_at) VALUES ($1,$2,$3,$4,$5,$6)`
	selectRequestQuery   = `SELECT ` + requestColumns + ` FROM requests WHERE id=$1`
	selectForUpdateQuery = `SELECT ` + requestColumns + ` FROM requests WHERE id=$1 FOR UPDATE`
	selectHistoryQuery   = `SELECT status, note, actor, created_at FROM request_status_history WHERE request_id=$1 ORDER BY seq`
	updateRequestQuery   = `UPDATE requests SET current_status=$2, assignee=$3 WHERE id=$1`
	selectOpenQuery      = `SELECT ` + requestColumns + ` FROM requests WHERE current_status NOT IN ('completed','cancelled') ORDER BY created_at`
	selectListQuery      = `SELECT ` + requestColumns + ` FROM requests
WHERE ($1::text IS NULL OR current_status = $1)
ORDER BY created_at DESC
LIMIT $2`
)

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateRequest inserts the request with its initial history.
func (p *Postgres) CreateRequest(ctx context.Context, req entities.Request) (*entities.Request, error) {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	roles := req.NotifyRoles
	if roles == nil {
		roles = []string{}
	}
	if _, err := tx.Exec(ctx, insertRequestQuery,
		req.ID, req.Location, req.Description, string(req.Priority), req.Submitter, req.Phone, req.AttachmentCount,
		req.Assignee, roles, req.SLAMinutes, req.CreatedAt, req.EstimatedCompletion, string(req.CurrentStatus),
	); err != nil {
		var pgErr *pgconn.PgError
		p.log.Errorw("failed to insert request", "error", err, "request_id", req.ID)
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: request %s already exists", entities.ErrValidation, req.ID)
		}
		return nil, fmt.Errorf("insert request: %w", err)
	}

	if err := insertHistory(ctx, tx, req.ID, 0, req.StatusHistory); err != nil {
		p.log.Errorw("failed to insert history", "error", err, "request_id", req.ID)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	p.log.Infow("request created", "request_id", req.ID, "priority", req.Priority)
	out := req.Clone()
	return &out, nil
}

// GetRequest returns a request with its full history.
func (p *Postgres) GetRequest(ctx context.Context, id string) (*entities.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, entities.ErrRequestNotFound
	}
	req, err := scanRequest(p.db.QueryRow(ctx, selectRequestQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrRequestNotFound
		}
		p.log.Errorw("failed to select request", "error", err, "request_id", id)
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req.StatusHistory, err = p.readHistory(ctx, p.db, id); err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequests returns requests newest first.
func (p *Postgres) ListRequests(ctx context.Context, filter entities.RequestFilter) ([]entities.Request, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	return p.listRequests(ctx, selectListQuery, status, limit)
}

// ListOpenRequests returns every request not yet in a terminal state.
func (p *Postgres) ListOpenRequests(ctx context.Context) ([]entities.Request, error) {
	return p.listRequests(ctx, selectOpenQuery)
}

// UpdateRequest locks the row, applies fn and stores new history entries.
func (p *Postgres) UpdateRequest(ctx context.Context, id string, fn func(req *entities.Request) error) (*entities.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, entities.ErrRequestNotFound
	}
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	req, err := scanRequest(tx.QueryRow(ctx, selectForUpdateQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrRequestNotFound
		}
		p.log.Errorw("failed to select request for update", "error", err, "request_id", id)
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req.StatusHistory, err = p.readHistory(ctx, tx, id); err != nil {
		return nil, err
	}

	before := len(req.StatusHistory)
	if err := fn(req); err != nil {
		return nil, err
	}
	if len(req.StatusHistory) < before {
		return nil, fmt.Errorf("update request %s: history must not shrink", id)
	}

	if err := insertHistory(ctx, tx, id, before, req.StatusHistory[before:]); err != nil {
		p.log.Errorw("failed to append history", "error", err, "request_id", id)
		return nil, err
	}
	if _, err := tx.Exec(ctx, updateRequestQuery, id, string(req.CurrentStatus), req.Assignee); err != nil {
		p.log.Errorw("failed to update request", "error", err, "request_id", id)
		return nil, fmt.Errorf("update request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

func (p *Postgres) listRequests(ctx context.Context, query string, args ...any) ([]entities.Request, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		p.log.Errorw("failed to list requests", "error", err)
		return nil, fmt.Errorf("list requests: %w", err)
	}
	reqs := make([]entities.Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan request: %w", err)
		}
		reqs = append(reqs, *req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		p.log.Errorw("error iterating requests", "error", err)
		return nil, err
	}

	for i := range reqs {
		if reqs[i].StatusHistory, err = p.readHistory(ctx, p.db, reqs[i].ID); err != nil {
			return nil, err
		}
	}
	return reqs, nil
}

func (p *Postgres) readHistory(ctx context.Context, q queryer, id string) ([]entities.StatusEntry, error) {
	rows, err := q.Query(ctx, selectHistoryQuery, id)
	if err != nil {
		p.log.Errorw("failed to select history", "error", err, "request_id", id)
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	history := make([]entities.StatusEntry, 0)
	for rows.Next() {
		var (
			e      entities.StatusEntry
			status string
		)
		if err := rows.Scan(&status, &e.Note, &e.Actor, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Status = entities.Status(status)
		history = append(history, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func insertHistory(ctx context.Context, tx pgx.Tx, id string, offset int, entries []entities.StatusEntry) error {
	for i, e := range entries {
		if _, err := tx.Exec(ctx, insertHistoryQuery, id, offset+i, string(e.Status), e.Note, e.Actor, e.Timestamp); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}
	}
	return nil
}

func scanRequest(row pgx.Row) (*entities.Request, error) {
	var (
		req       entities.Request
		priority  string
		status    string
		estimated *time.Time
	)
	if err := row.Scan(
		&req.ID, &req.Location, &req.Description, &priority, &req.Submitter, &req.Phone, &req.AttachmentCount,
		&req.Assignee, &req.NotifyRoles, &req.SLAMinutes, &req.CreatedAt, &estimated, &status,
	); err != nil {
		return nil, err
	}
	req.Priority = entities.Priority(priority)
	req.CurrentStatus = entities.Status(status)
	req.EstimatedCompletion = estimated
	return &req, nil
}
