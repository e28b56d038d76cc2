package domain

import (
	"context"
	"sync"
	"testing"
	"time"

	"facility-maintenance/internal/entities"
	"facility-maintenance/internal/repository/memory"
	"facility-maintenance/internal/settings"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type registryMock struct{ mock.Mock }

func (m *registryMock) Register(req entities.Request) { m.Called(req.ID) }
func (m *registryMock) Update(req entities.Request)   { m.Called(req.ID) }
func (m *registryMock) Unregister(id string)          { m.Called(id) }

type eventRecorder struct {
	mu     sync.Mutex
	events []entities.Event
}

func (r *eventRecorder) Enqueue(ev entities.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *eventRecorder) types() []entities.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	uc       *Usecase
	repo     *memory.Memory
	registry *registryMock
	events   *eventRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	repo := memory.New(log)

	defaults := entities.DefaultSettings("ops@example.com")
	defaults.PriorityRules = []entities.PriorityRule{
		{Condition: entities.Condition{Kind: entities.ConditionContains, Value: "water leak"}, Priority: entities.PriorityHigh, NotifyRoles: []string{"plumber"}, EscalationMinutes: 120},
		{Condition: entities.Condition{Kind: entities.ConditionOverride, Value: "urgent"}, Priority: entities.PriorityUrgent},
		{Condition: entities.Condition{Kind: entities.ConditionAlways}, Priority: entities.PriorityMedium},
	}
	provider := settings.New(log, repo, defaults)
	_, err := provider.Reload(context.Background())
	require.NoError(t, err)

	registry := &registryMock{}
	registry.On("Register", mock.Anything).Return()
	registry.On("Update", mock.Anything).Return()
	registry.On("Unregister", mock.Anything).Return()

	events := &eventRecorder{}
	return &fixture{
		uc:       New(log, context.Background(), repo, provider, registry, events, time.Second),
		repo:     repo,
		registry: registry,
		events:   events,
	}
}

func leakInput() entities.SubmitInput {
	return entities.SubmitInput{Location: "1st Floor", Description: "Water leak in bathroom", IsAnonymous: true}
}

func requireConsistent(t *testing.T, req *entities.Request) {
	t.Helper()
	require.NotEmpty(t, req.StatusHistory)
	require.Equal(t, req.CurrentStatus, req.StatusHistory[len(req.StatusHistory)-1].Status)
	for i := 1; i < len(req.StatusHistory); i++ {
		require.False(t, req.StatusHistory[i].Timestamp.Before(req.StatusHistory[i-1].Timestamp))
	}
}

func TestUsecase_SubmitClassifiesWaterLeak(t *testing.T) {
	f := newFixture(t)

	req, err := f.uc.Submit(context.Background(), leakInput())
	require.NoError(t, err)
	require.Equal(t, entities.PriorityHigh, req.Priority)
	require.Equal(t, entities.StatusSubmitted, req.CurrentStatus)
	require.Len(t, req.StatusHistory, 1)
	require.Equal(t, entities.AnonymousSubmitter, req.Submitter)
	require.Equal(t, []string{"plumber"}, req.NotifyRoles)
	require.NotNil(t, req.EstimatedCompletion)
	require.Equal(t, req.CreatedAt.Add(2*time.Hour), *req.EstimatedCompletion)
	requireConsistent(t, req)

	f.registry.AssertCalled(t, "Register", req.ID)
	require.Equal(t, []entities.EventType{entities.EventNewRequest}, f.events.types())
}

func TestUsecase_SubmitDefaultAndOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.uc.Submit(ctx, entities.SubmitInput{Location: "Lobby", Description: "Light bulb flickering", Name: "Dilnoza"})
	require.NoError(t, err)
	require.Equal(t, entities.PriorityMedium, req.Priority)
	require.Equal(t, "Dilnoza", req.Submitter)
	require.Nil(t, req.EstimatedCompletion)

	req, err = f.uc.Submit(ctx, entities.SubmitInput{Location: "Lobby", Description: "Main door jammed shut", RequestedPriority: "URGENT"})
	require.NoError(t, err)
	require.Equal(t, entities.PriorityUrgent, req.Priority)
}

func TestUsecase_SubmitValidation(t *testing.T) {
	tests := map[string]entities.SubmitInput{
		"empty location":    {Location: "  ", Description: "Water leak in bathroom"},
		"short description": {Location: "Lobby", Description: "  leak     "},
		"bad phone":         {Location: "Lobby", Description: "Water leak in bathroom", Phone: "12-34"},
		"negative files":    {Location: "Lobby", Description: "Water leak in bathroom", AttachmentCount: -1},
		"bad priority":      {Location: "Lobby", Description: "Water leak in bathroom", RequestedPriority: "whenever"},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.uc.Submit(context.Background(), in)
			require.ErrorIs(t, err, entities.ErrValidation)
			f.registry.AssertNotCalled(t, "Register", mock.Anything)
			require.Empty(t, f.events.types())
		})
	}
}

func TestUsecase_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.uc.Submit(ctx, leakInput())
	require.NoError(t, err)

	path := []entities.Status{
		entities.StatusReviewing,
		entities.StatusInProgress,
		entities.StatusPendingVerification,
		entities.StatusCompleted,
	}
	for _, st := range path {
		req, err = f.uc.Transition(ctx, req.ID, st, "moving on", "tech-1")
		require.NoError(t, err)
		requireConsistent(t, req)
	}

	require.Equal(t, entities.StatusCompleted, req.CurrentStatus)
	require.Len(t, req.StatusHistory, 5)
	for i, st := range path {
		require.Equal(t, st, req.StatusHistory[i+1].Status)
		require.Equal(t, "tech-1", req.StatusHistory[i+1].Actor)
	}

	f.registry.AssertCalled(t, "Unregister", req.ID)
	require.Equal(t, []entities.EventType{
		entities.EventNewRequest,
		entities.EventStatusChanged,
		entities.EventStatusChanged,
		entities.EventStatusChanged,
		entities.EventCompleted,
	}, f.events.types())

	for _, st := range []entities.Status{entities.StatusReviewing, entities.StatusCancelled, entities.StatusCompleted} {
		_, err = f.uc.Transition(ctx, req.ID, st, "", "")
		require.ErrorIs(t, err, entities.ErrInvalidTransition)
	}

	stored, err := f.uc.Request(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, stored.StatusHistory, 5)
}

func TestUsecase_IllegalTransitionLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.uc.Submit(ctx, leakInput())
	require.NoError(t, err)

	_, err = f.uc.Transition(ctx, req.ID, entities.StatusCompleted, "skip", "")
	require.ErrorIs(t, err, entities.ErrInvalidTransition)

	stored, err := f.uc.Request(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, entities.StatusSubmitted, stored.CurrentStatus)
	require.Len(t, stored.StatusHistory, 1)
	require.Len(t, f.events.types(), 1)
}

func TestUsecase_TransitionErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.Transition(ctx, "missing", entities.StatusReviewing, "", "")
	require.ErrorIs(t, err, entities.ErrRequestNotFound)

	_, err = f.uc.Transition(ctx, "missing", entities.Status("archived"), "", "")
	require.ErrorIs(t, err, entities.ErrValidation)
}

func TestUsecase_VerificationCanReturnToInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.uc.Submit(ctx, leakInput())
	require.NoError(t, err)
	for _, st := range []entities.Status{entities.StatusReviewing, entities.StatusInProgress, entities.StatusPendingVerification, entities.StatusInProgress} {
		req, err = f.uc.Transition(ctx, req.ID, st, "", "")
		require.NoError(t, err)
	}
	require.Equal(t, entities.StatusInProgress, req.CurrentStatus)
	require.Len(t, req.StatusHistory, 5)
}

func TestUsecase_CancelFromEveryOpenState(t *testing.T) {
	steps := []entities.Status{entities.StatusReviewing, entities.StatusInProgress, entities.StatusPendingVerification}
	for n := 0; n <= len(steps); n++ {
		f := newFixture(t)
		ctx := context.Background()

		req, err := f.uc.Submit(ctx, leakInput())
		require.NoError(t, err)
		for _, st := range steps[:n] {
			req, err = f.uc.Transition(ctx, req.ID, st, "", "")
			require.NoError(t, err)
		}

		req, err = f.uc.Cancel(ctx, req.ID, "", "operator")
		require.NoError(t, err)
		require.Equal(t, entities.StatusCancelled, req.CurrentStatus)
		last, _ := req.LastEntry()
		require.Equal(t, "Request cancelled", last.Note)
		f.registry.AssertCalled(t, "Unregister", req.ID)

		_, err = f.uc.Cancel(ctx, req.ID, "again", "operator")
		require.ErrorIs(t, err, entities.ErrInvalidTransition)
	}
}

func TestUsecase_CancelCompletedFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.uc.Submit(ctx, leakInput())
	require.NoError(t, err)
	for _, st := range []entities.Status{entities.StatusReviewing, entities.StatusInProgress, entities.StatusPendingVerification, entities.StatusCompleted} {
		req, err = f.uc.Transition(ctx, req.ID, st, "", "")
		require.NoError(t, err)
	}
	_, err = f.uc.Cancel(ctx, req.ID, "too late", "")
	require.ErrorIs(t, err, entities.ErrInvalidTransition)
}

func TestUsecase_Assign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.uc.Submit(ctx, leakInput())
	require.NoError(t, err)

	req, err = f.uc.Assign(ctx, req.ID, "plumber-7", "dispatcher")
	require.NoError(t, err)
	require.Equal(t, "plumber-7", req.Assignee)
	require.Len(t, req.StatusHistory, 1)
	f.registry.AssertCalled(t, "Update", req.ID)

	_, err = f.uc.Cancel(ctx, req.ID, "", "")
	require.NoError(t, err)
	_, err = f.uc.Assign(ctx, req.ID, "plumber-8", "dispatcher")
	require.ErrorIs(t, err, entities.ErrInvalidTransition)

	_, err = f.uc.Assign(ctx, req.ID, " ", "dispatcher")
	require.ErrorIs(t, err, entities.ErrValidation)
}

func TestUsecase_ConcurrentTransitionsSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.uc.Submit(ctx, leakInput())
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.Transition(ctx, req.ID, entities.StatusReviewing, "", "")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, entities.ErrInvalidTransition)
	}
	require.Equal(t, 1, ok)

	stored, err := f.uc.Request(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, stored.StatusHistory, 2)
}

func TestUsecase_MonotonicTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Date(2024, 2, 12, 9, 0, 0, 0, time.UTC)
	f.uc.now = func() time.Time { return base }
	req, err := f.uc.Submit(ctx, leakInput())
	require.NoError(t, err)

	f.uc.now = func() time.Time { return base.Add(-time.Hour) }
	req, err = f.uc.Transition(ctx, req.ID, entities.StatusReviewing, "", "")
	require.NoError(t, err)
	require.Equal(t, base, req.StatusHistory[1].Timestamp)
}

func TestUsecase_RequestsFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.uc.Submit(ctx, leakInput())
	require.NoError(t, err)
	_, err = f.uc.Submit(ctx, leakInput())
	require.NoError(t, err)
	_, err = f.uc.Transition(ctx, first.ID, entities.StatusReviewing, "", "")
	require.NoError(t, err)

	reviewing := entities.StatusReviewing
	list, err := f.uc.Requests(ctx, entities.RequestFilter{Status: &reviewing})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, first.ID, list[0].ID)

	bad := entities.Status("nope")
	_, err = f.uc.Requests(ctx, entities.RequestFilter{Status: &bad})
	require.ErrorIs(t, err, entities.ErrValidation)
}

func TestUsecase_DeliveryFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.uc.Submit(ctx, leakInput())
	require.NoError(t, err)
	require.NoError(t, f.repo.RecordDeliveryFailure(ctx, entities.DeliveryFailure{RequestID: req.ID, Channel: entities.ChannelEmail, Attempts: 3}))

	failures, err := f.uc.DeliveryFailures(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, failures, 1)

	_, err = f.uc.DeliveryFailures(ctx, "missing")
	require.ErrorIs(t, err, entities.ErrRequestNotFound)
}

func TestUsecase_SettingsRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.uc.Settings(ctx)
	require.NoError(t, err)
	s.Frequency = entities.FrequencyDaily

	saved, err := f.uc.SaveSettings(ctx, *s)
	require.NoError(t, err)
	require.Equal(t, entities.FrequencyDaily, saved.Frequency)

	s.PriorityRules = nil
	_, err = f.uc.SaveSettings(ctx, *s)
	require.ErrorIs(t, err, entities.ErrInvalidSettings)

	reloaded, err := f.uc.ReloadSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, saved.Version, reloaded.Version)
}
