// Package memory is a process-local repository backend for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"facility-maintenance/internal/entities"

	"go.uber.org/zap"
)

type escalationKey struct {
	requestID string
	threshold int
}

// Memory keeps all state in maps guarded by one lock.
type Memory struct {
	log *zap.SugaredLogger

	mu          sync.RWMutex
	requests    map[string]entities.Request
	settings    []entities.NotificationSettings
	escalations map[escalationKey]time.Time
	failures    []entities.DeliveryFailure
}

// New creates an empty in-memory repository.
func New(log *zap.SugaredLogger) *Memory {
	return &Memory{
		log:         log.Named("repo.memory"),
		requests:    make(map[string]entities.Request),
		escalations: make(map[escalationKey]time.Time),
	}
}

// OnStart is a no-op.
func (m *Memory) OnStart(_ context.Context) error {
	m.log.Infow("memory repository ready")
	return nil
}

// OnStop is a no-op.
func (m *Memory) OnStop(_ context.Context) error { return nil }

// CreateRequest stores a copy of req.
func (m *Memory) CreateRequest(_ context.Context, req entities.Request) (*entities.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[req.ID]; ok {
		return nil, fmt.Errorf("%w: request %s already exists", entities.ErrValidation, req.ID)
	}
	m.requests[req.ID] = req.Clone()
	out := req.Clone()
	return &out, nil
}

// GetRequest returns a copy of the stored request.
func (m *Memory) GetRequest(_ context.Context, id string) (*entities.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, entities.ErrRequestNotFound
	}
	out := req.Clone()
	return &out, nil
}

// ListRequests returns requests newest first.
func (m *Memory) ListRequests(_ context.Context, filter entities.RequestFilter) ([]entities.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]entities.Request, 0, len(m.requests))
	for _, r := range m.requests {
		if filter.Status != nil && r.CurrentStatus != *filter.Status {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListOpenRequests returns non-terminal requests oldest first.
func (m *Memory) ListOpenRequests(_ context.Context) ([]entities.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]entities.Request, 0)
	for _, r := range m.requests {
		if !r.CurrentStatus.Terminal() {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateRequest applies fn to a copy and stores it only if fn succeeds.
func (m *Memory) UpdateRequest(_ context.Context, id string, fn func(req *entities.Request) error) (*entities.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.requests[id]
	if !ok {
		return nil, entities.ErrRequestNotFound
	}
	req := stored.Clone()
	before := len(req.StatusHistory)
	if err := fn(&req); err != nil {
		return nil, err
	}
	if len(req.StatusHistory) < before {
		return nil, fmt.Errorf("update request %s: history must not shrink", id)
	}
	m.requests[id] = req.Clone()
	return &req, nil
}

// ActiveSettings returns the newest saved version.
func (m *Memory) ActiveSettings(_ context.Context) (*entities.NotificationSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.settings) == 0 {
		return nil, entities.ErrSettingsNotFound
	}
	out := m.settings[len(m.settings)-1].Clone()
	return &out, nil
}

// SaveSettings appends a new version.
func (m *Memory) SaveSettings(_ context.Context, s entities.NotificationSettings) (*entities.NotificationSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := s.Clone()
	saved.Version = int64(len(m.settings) + 1)
	saved.UpdatedAt = time.Now().UTC()
	m.settings = append(m.settings, saved)
	out := saved.Clone()
	return &out, nil
}

// MarkEscalated records a fired level; false means it was already recorded.
func (m *Memory) MarkEscalated(_ context.Context, requestID string, thresholdMinutes int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := escalationKey{requestID: requestID, threshold: thresholdMinutes}
	if _, ok := m.escalations[key]; ok {
		return false, nil
	}
	m.escalations[key] = at
	return true, nil
}

// FiredEscalations lists thresholds already fired for a request.
func (m *Memory) FiredEscalations(_ context.Context, requestID string) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]int, 0)
	for k := range m.escalations {
		if k.requestID == requestID {
			out = append(out, k.threshold)
		}
	}
	sort.Ints(out)
	return out, nil
}

// RecordDeliveryFailure appends f.
func (m *Memory) RecordDeliveryFailure(_ context.Context, f entities.DeliveryFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failures = append(m.failures, f)
	return nil
}

// ListDeliveryFailures returns failures recorded for a request.
func (m *Memory) ListDeliveryFailures(_ context.Context, requestID string) ([]entities.DeliveryFailure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]entities.DeliveryFailure, 0)
	for _, f := range m.failures {
		if f.RequestID == requestID {
			out = append(out, f)
		}
	}
	return out, nil
}
