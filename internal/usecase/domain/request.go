package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"facility-maintenance/internal/entities"
	"facility-maintenance/internal/metrics"
	"facility-maintenance/internal/priority"
	"facility-maintenance/pkg/validate"

	"github.com/google/uuid"
)

const (
	submittedNote = "Maintenance request submitted"
	cancelledNote = "Request cancelled"
)

// Submit validates the input, classifies it and stores a new request in the
// submitted state.
func (u *Usecase) Submit(ctx context.Context, in entities.SubmitInput) (*entities.Request, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	in.Location = strings.TrimSpace(in.Location)
	in.Description = strings.TrimSpace(in.Description)
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.RequestedPriority = entities.Priority(strings.ToLower(strings.TrimSpace(string(in.RequestedPriority))))

	if err := validate.Struct(in, entities.ErrValidation); err != nil {
		return nil, err
	}

	settings := u.settings.Current()
	rule, idx := priority.Match(priority.Subject{
		Location:          in.Location,
		Description:       in.Description,
		RequestedPriority: in.RequestedPriority,
	}, settings.PriorityRules)

	submitter := in.Name
	if in.IsAnonymous || submitter == "" {
		submitter = entities.AnonymousSubmitter
	}

	now := u.now().UTC()
	req := entities.Request{
		ID:              uuid.NewString(),
		Location:        in.Location,
		Description:     in.Description,
		Priority:        rule.Priority,
		Submitter:       submitter,
		Phone:           in.Phone,
		AttachmentCount: in.AttachmentCount,
		NotifyRoles:     append([]string(nil), rule.NotifyRoles...),
		SLAMinutes:      rule.EscalationMinutes,
		CreatedAt:       now,
	}
	if rule.EscalationMinutes > 0 {
		eta := now.Add(time.Duration(rule.EscalationMinutes) * time.Minute)
		req.EstimatedCompletion = &eta
	}
	req.Append(entities.StatusEntry{Status: entities.StatusSubmitted, Timestamp: now, Note: submittedNote, Actor: submitter})

	created, err := u.repo.CreateRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	u.registry.Register(*created)
	u.emit(entities.Event{
		Type:      entities.EventNewRequest,
		Request:   *created,
		NewStatus: entities.StatusSubmitted,
		Note:      submittedNote,
		Actor:     submitter,
	})
	metrics.RequestsSubmitted.WithLabelValues(string(created.Priority)).Inc()
	u.log.Infow("request submitted", "request_id", created.ID, "priority", created.Priority, "rule", idx, "location", created.Location)
	return created, nil
}

// Transition moves a request to the next status. Calls for the same id are
// serialized; a rejected transition leaves the request untouched.
func (u *Usecase) Transition(ctx context.Context, id string, to entities.Status, note, actor string) (*entities.Request, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	if id == "" {
		return nil, fmt.Errorf("%w: request id is required", entities.ErrValidation)
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", entities.ErrValidation, to)
	}
	note, actor = strings.TrimSpace(note), strings.TrimSpace(actor)

	unlock := u.locks.Lock(id)
	defer unlock()

	var from entities.Status
	updated, err := u.repo.UpdateRequest(ctx, id, func(req *entities.Request) error {
		if !req.CurrentStatus.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", entities.ErrInvalidTransition, req.CurrentStatus, to)
		}
		from = req.CurrentStatus
		ts := u.now().UTC()
		if last, ok := req.LastEntry(); ok && ts.Before(last.Timestamp) {
			ts = last.Timestamp
		}
		req.Append(entities.StatusEntry{Status: to, Timestamp: ts, Note: note, Actor: actor})
		return nil
	})
	if err != nil {
		u.log.Warnw("transition rejected", "request_id", id, "to", to, "error", err)
		return nil, err
	}

	if to.Terminal() {
		u.registry.Unregister(id)
	} else {
		u.registry.Update(*updated)
	}

	evType := entities.EventStatusChanged
	if to == entities.StatusCompleted {
		evType = entities.EventCompleted
	}
	u.emit(entities.Event{
		Type:      evType,
		Request:   *updated,
		OldStatus: from,
		NewStatus: to,
		Note:      note,
		Actor:     actor,
	})
	metrics.Transitions.WithLabelValues(string(to)).Inc()
	u.log.Infow("request transitioned", "request_id", id, "from", from, "to", to, "actor", actor)
	return updated, nil
}

// Cancel moves a non-terminal request to cancelled.
func (u *Usecase) Cancel(ctx context.Context, id, note, actor string) (*entities.Request, error) {
	if strings.TrimSpace(note) == "" {
		note = cancelledNote
	}
	return u.Transition(ctx, id, entities.StatusCancelled, note, actor)
}

// Assign records who is working on an open request. History is unchanged.
func (u *Usecase) Assign(ctx context.Context, id, assignee, actor string) (*entities.Request, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	assignee = strings.TrimSpace(assignee)
	if id == "" || assignee == "" {
		return nil, fmt.Errorf("%w: request id and assignee are required", entities.ErrValidation)
	}

	unlock := u.locks.Lock(id)
	defer unlock()

	updated, err := u.repo.UpdateRequest(ctx, id, func(req *entities.Request) error {
		if req.CurrentStatus.Terminal() {
			return fmt.Errorf("%w: request is %s", entities.ErrInvalidTransition, req.CurrentStatus)
		}
		req.Assignee = assignee
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.registry.Update(*updated)
	u.log.Infow("request assigned", "request_id", id, "assignee", assignee, "actor", actor)
	return updated, nil
}

// Request returns one request with its history.
func (u *Usecase) Request(ctx context.Context, id string) (*entities.Request, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	if id == "" {
		return nil, fmt.Errorf("%w: request id is required", entities.ErrValidation)
	}
	return u.repo.GetRequest(ctx, id)
}

// Requests lists requests newest first.
func (u *Usecase) Requests(ctx context.Context, filter entities.RequestFilter) ([]entities.Request, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", entities.ErrValidation, *filter.Status)
	}
	if filter.Limit < 0 || filter.Limit > 500 {
		return nil, fmt.Errorf("%w: limit must be between 0 and 500", entities.ErrValidation)
	}
	return u.repo.ListRequests(ctx, filter)
}

// DeliveryFailures lists notifications that could not be delivered for a request.
func (u *Usecase) DeliveryFailures(ctx context.Context, id string) ([]entities.DeliveryFailure, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	if _, err := u.repo.GetRequest(ctx, id); err != nil {
		return nil, err
	}
	return u.repo.ListDeliveryFailures(ctx, id)
}

func (u *Usecase) emit(ev entities.Event) {
	ev.ID = uuid.NewString()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = u.now().UTC()
	}
	if u.events != nil && !u.events.Enqueue(ev) {
		u.log.Errorw("event dropped", "type", ev.Type, "request_id", ev.Request.ID)
	}
}
