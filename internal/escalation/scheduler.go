// Package escalation fires time-based escalation levels for open requests.
package escalation

import (
	"context"
	"sync"
	"time"

	"facility-maintenance/internal/entities"
	"facility-maintenance/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettingsSource yields the active settings snapshot.
type SettingsSource interface {
	Current() *entities.NotificationSettings
}

// Store persists fired levels so they survive restarts.
type Store interface {
	ListOpenRequests(ctx context.Context) ([]entities.Request, error)
	MarkEscalated(ctx context.Context, requestID string, thresholdMinutes int, at time.Time) (bool, error)
	FiredEscalations(ctx context.Context, requestID string) ([]int, error)
}

// Emitter receives escalation events.
type Emitter interface {
	Enqueue(ev entities.Event) bool
}

type entry struct {
	req   entities.Request
	fired map[int]bool
}

// Scheduler keeps a registry of open requests and evaluates it on a fixed tick.
type Scheduler struct {
	log      *zap.SugaredLogger
	settings SettingsSource
	store    Store
	emit     Emitter
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	open map[string]*entry
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler. Run starts the periodic evaluation.
func New(log *zap.SugaredLogger, settings SettingsSource, store Store, emit Emitter, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		log:      log.Named("escalation"),
		settings: settings,
		store:    store,
		emit:     emit,
		interval: interval,
		now:      time.Now,
		open:     make(map[string]*entry),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register starts tracking req. Registering an id again keeps its fired levels.
func (s *Scheduler) Register(req entities.Request) {
	if req.CurrentStatus.Terminal() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.open[req.ID]; ok {
		e.req = req.Clone()
		return
	}
	s.open[req.ID] = &entry{req: req.Clone(), fired: make(map[int]bool)}
	metrics.OpenRequests.Set(float64(len(s.open)))
}

// Update refreshes the snapshot used for templating if req is tracked.
func (s *Scheduler) Update(req entities.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.open[req.ID]; ok {
		e.req = req.Clone()
	}
}

// Unregister stops evaluating id. Unknown ids are ignored.
func (s *Scheduler) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.open, id)
	metrics.OpenRequests.Set(float64(len(s.open)))
}

// Tracked reports whether id is registered.
func (s *Scheduler) Tracked(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.open[id]
	return ok
}

// Load registers every open request from the store along with the levels it
// already fired.
func (s *Scheduler) Load(ctx context.Context) error {
	reqs, err := s.store.ListOpenRequests(ctx)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		fired, err := s.store.FiredEscalations(ctx, r.ID)
		if err != nil {
			return err
		}
		s.Register(r)
		s.mu.Lock()
		if e, ok := s.open[r.ID]; ok {
			for _, threshold := range fired {
				e.fired[threshold] = true
			}
		}
		s.mu.Unlock()
	}
	s.log.Infow("escalation registry loaded", "open_requests", len(reqs))
	return nil
}

// Run evaluates the registry every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates all registered requests once and returns the events it fired.
// Every crossed level that has not fired yet fires, lowest threshold first.
func (s *Scheduler) Tick(ctx context.Context) []entities.Event {
	settings := s.settings.Current()
	if settings == nil || !settings.Escalation.Enabled || len(settings.Escalation.Levels) == 0 {
		return nil
	}
	levels := settings.Escalation.Levels

	cal, err := ParseWorkingHours(settings.WorkingHours)
	hasCal := err == nil
	if err != nil {
		s.log.Warnw("working hours unusable, counting wall-clock time", "error", err)
	}

	now := s.now()

	s.mu.Lock()
	snapshot := make([]entities.Request, 0, len(s.open))
	for _, e := range s.open {
		snapshot = append(snapshot, e.req)
	}
	s.mu.Unlock()

	var fired []entities.Event
	for _, req := range snapshot {
		var elapsed time.Duration
		if !hasCal || settings.Escalation.ApplyOffHours || req.Priority.Expedited() {
			elapsed = now.Sub(req.CreatedAt)
		} else {
			elapsed = cal.WorkingTime(req.CreatedAt, now)
		}

		for i, lvl := range levels {
			if elapsed < time.Duration(lvl.ThresholdMinutes)*time.Minute {
				break
			}
			if !s.claim(req.ID, lvl.ThresholdMinutes) {
				continue
			}
			isNew, err := s.store.MarkEscalated(ctx, req.ID, lvl.ThresholdMinutes, now)
			if err != nil {
				s.log.Errorw("failed to persist escalation", "error", err, "request_id", req.ID, "threshold", lvl.ThresholdMinutes)
			} else if !isNew {
				continue
			}

			ev := entities.Event{
				ID:        uuid.NewString(),
				Type:      entities.EventEscalationTriggered,
				Request:   req,
				NewStatus: req.CurrentStatus,
				Escalation: &entities.EscalationFired{
					Level:            i + 1,
					ThresholdMinutes: lvl.ThresholdMinutes,
					NotifyUsers:      append([]string(nil), lvl.NotifyUsers...),
					Actions:          append([]string(nil), lvl.Actions...),
				},
				OccurredAt: now,
			}
			metrics.EscalationsFired.WithLabelValues(string(req.Priority)).Inc()
			s.log.Infow("escalation triggered",
				"request_id", req.ID,
				"level", i+1,
				"threshold_minutes", lvl.ThresholdMinutes,
				"elapsed", elapsed.String(),
			)
			if s.emit != nil && !s.emit.Enqueue(ev) {
				s.log.Errorw("escalation event dropped", "request_id", req.ID, "level", i+1)
			}
			fired = append(fired, ev)
		}
	}
	return fired
}

// claim marks a level fired if the request is still tracked and the level is new.
func (s *Scheduler) claim(id string, threshold int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.open[id]
	if !ok || e.fired[threshold] {
		return false
	}
	e.fired[threshold] = true
	return true
}
