package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"facility-maintenance/config"
	"facility-maintenance/internal/channel"
	"facility-maintenance/internal/entities"
	"facility-maintenance/internal/repository/memory"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type senderMock struct {
	mock.Mock
}

func (m *senderMock) Send(ctx context.Context, destination, message string) error {
	args := m.Called(ctx, destination, message)
	return args.Error(0)
}

type staticSettings struct {
	mu sync.Mutex
	s  *entities.NotificationSettings
}

func (f *staticSettings) Current() *entities.NotificationSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

func baseSettings() *entities.NotificationSettings {
	s := entities.DefaultSettings("ops@example.com")
	s.CCEmails = []string{"facilities@example.com"}
	s.RoleContacts = map[string]string{"plumber": "plumber@example.com"}
	return &s
}

func leakEvent(p entities.Priority) entities.Event {
	return entities.Event{
		ID:   "ev-1",
		Type: entities.EventNewRequest,
		Request: entities.Request{
			ID:            "req-1",
			Location:      "1st Floor",
			Description:   "Water leak in bathroom",
			Priority:      p,
			Submitter:     entities.AnonymousSubmitter,
			NotifyRoles:   []string{"plumber"},
			CreatedAt:     time.Date(2024, 2, 12, 9, 0, 0, 0, time.UTC),
			CurrentStatus: entities.StatusSubmitted,
		},
		NewStatus:  entities.StatusSubmitted,
		OccurredAt: time.Date(2024, 2, 12, 9, 0, 0, 0, time.UTC),
	}
}

type fixture struct {
	d        *Dispatcher
	email    *senderMock
	whatsapp *senderMock
	sms      *senderMock
	store    *memory.Memory
	logs     *observer.ObservedLogs
	sleeps   []time.Duration
}

func newFixture(t *testing.T, s *entities.NotificationSettings) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	f := &fixture{
		logs:     logs,
		email:    &senderMock{},
		whatsapp: &senderMock{},
		sms:      &senderMock{},
		store:    memory.New(zap.NewNop().Sugar()),
	}
	senders := map[entities.Channel]channel.Sender{
		entities.ChannelEmail:    f.email,
		entities.ChannelWhatsApp: f.whatsapp,
		entities.ChannelSMS:      f.sms,
	}
	cfg := config.DispatcherConfig{Workers: 2, QueueSize: 4, MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: 30 * time.Second}
	f.d = New(zap.New(core).Sugar(), &staticSettings{s: s}, senders, f.store, cfg,
		WithSleep(func(_ context.Context, d time.Duration) error {
			f.sleeps = append(f.sleeps, d)
			return nil
		}),
	)
	return f
}

func TestDispatchWhatsAppDisabledSendsEmailOnly(t *testing.T) {
	f := newFixture(t, baseSettings())
	f.email.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	res := f.d.Dispatch(context.Background(), leakEvent(entities.PriorityHigh))

	require.Len(t, res.Outcomes, 3)
	for _, o := range res.Outcomes {
		require.Equal(t, entities.ChannelEmail, o.Channel)
		require.True(t, o.Delivered)
	}
	_, ok := res.Outcome(entities.ChannelWhatsApp)
	require.False(t, ok)
	f.email.AssertNumberOfCalls(t, "Send", 3)
	f.whatsapp.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	f.email.AssertCalled(t, "Send", mock.Anything, "plumber@example.com", "New maintenance request at 1st Floor (high): Water leak in bathroom")
}

func TestDispatchPartialFailureIsIndependent(t *testing.T) {
	s := baseSettings()
	s.CCEmails = nil
	s.RoleContacts = nil
	s.WhatsAppNotifications = true
	s.WhatsAppNumber = "+998901234567"
	f := newFixture(t, s)
	f.email.On("Send", mock.Anything, "ops@example.com", mock.Anything).Return(nil)
	f.whatsapp.On("Send", mock.Anything, "+998901234567", mock.Anything).Return(errors.New("gateway down"))

	res := f.d.Dispatch(context.Background(), leakEvent(entities.PriorityHigh))

	email, ok := res.Outcome(entities.ChannelEmail)
	require.True(t, ok)
	require.True(t, email.Delivered)
	require.Equal(t, 1, email.Attempts)

	wa, ok := res.Outcome(entities.ChannelWhatsApp)
	require.True(t, ok)
	require.False(t, wa.Delivered)
	require.Equal(t, 3, wa.Attempts)
	require.ErrorContains(t, errors.New(wa.Error), "gateway down")
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps)

	failures, err := f.store.ListDeliveryFailures(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Equal(t, entities.ChannelWhatsApp, failures[0].Channel)
	require.Equal(t, 3, failures[0].Attempts)
	require.Equal(t, "ev-1", failures[0].EventID)
}

func TestDispatchRetrySucceeds(t *testing.T) {
	s := baseSettings()
	s.CCEmails = nil
	s.RoleContacts = nil
	f := newFixture(t, s)
	f.email.On("Send", mock.Anything, "ops@example.com", mock.Anything).Return(errors.New("timeout")).Once()
	f.email.On("Send", mock.Anything, "ops@example.com", mock.Anything).Return(nil).Once()

	res := f.d.Dispatch(context.Background(), leakEvent(entities.PriorityLow))
	out, ok := res.Outcome(entities.ChannelEmail)
	require.True(t, ok)
	require.True(t, out.Delivered)
	require.Equal(t, 2, out.Attempts)

	failures, err := f.store.ListDeliveryFailures(context.Background(), "req-1")
	require.NoError(t, err)
	require.Empty(t, failures)
}

func TestDispatchSMSToSubmitterPhone(t *testing.T) {
	s := baseSettings()
	s.EmailNotifications = false
	s.SMSNotifications = true
	f := newFixture(t, s)
	f.sms.On("Send", mock.Anything, "+998901112233", mock.Anything).Return(nil)

	ev := leakEvent(entities.PriorityMedium)
	ev.Request.Phone = "+998901112233"
	res := f.d.Dispatch(context.Background(), ev)
	require.Len(t, res.Outcomes, 1)
	require.Equal(t, entities.ChannelSMS, res.Outcomes[0].Channel)
}

func TestDispatchBatchesNonUrgentDigest(t *testing.T) {
	s := baseSettings()
	s.CCEmails = nil
	s.RoleContacts = nil
	s.Frequency = entities.FrequencyHourly
	f := newFixture(t, s)
	f.email.On("Send", mock.Anything, "ops@example.com", mock.Anything).Return(nil)

	ctx := context.Background()
	res := f.d.Dispatch(ctx, leakEvent(entities.PriorityLow))
	require.True(t, res.Outcomes[0].Batched)
	res = f.d.Dispatch(ctx, leakEvent(entities.PriorityMedium))
	require.True(t, res.Outcomes[0].Batched)
	f.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	require.Equal(t, 2, f.d.Pending())

	res = f.d.Dispatch(ctx, leakEvent(entities.PriorityUrgent))
	require.True(t, res.Outcomes[0].Delivered)
	f.email.AssertNumberOfCalls(t, "Send", 1)

	outs := f.d.FlushDigests(ctx)
	require.Len(t, outs, 1)
	require.True(t, outs[0].Delivered)
	require.Zero(t, f.d.Pending())
	f.email.AssertNumberOfCalls(t, "Send", 2)
	f.email.AssertCalled(t, "Send", mock.Anything, "ops@example.com", mock.MatchedBy(func(m string) bool {
		return strings.HasPrefix(m, "2 maintenance updates:")
	}))
}

func TestFlushDigestsRecordsFailurePerEvent(t *testing.T) {
	s := baseSettings()
	s.CCEmails = nil
	s.RoleContacts = nil
	s.Frequency = entities.FrequencyHourly
	f := newFixture(t, s)
	f.email.On("Send", mock.Anything, "ops@example.com", mock.Anything).Return(errors.New("smtp unavailable"))

	ctx := context.Background()
	first := leakEvent(entities.PriorityLow)
	second := leakEvent(entities.PriorityMedium)
	second.ID = "ev-2"
	second.Request.ID = "req-2"
	require.True(t, f.d.Dispatch(ctx, first).Outcomes[0].Batched)
	require.True(t, f.d.Dispatch(ctx, second).Outcomes[0].Batched)

	outs := f.d.FlushDigests(ctx)
	require.Len(t, outs, 1)
	require.False(t, outs[0].Delivered)
	f.email.AssertNumberOfCalls(t, "Send", 3)

	for _, want := range []entities.Event{first, second} {
		failures, err := f.store.ListDeliveryFailures(ctx, want.Request.ID)
		require.NoError(t, err)
		require.Len(t, failures, 1)
		require.Equal(t, want.ID, failures[0].EventID)
		require.Equal(t, entities.EventNewRequest, failures[0].EventType)
		require.Equal(t, entities.ChannelEmail, failures[0].Channel)
		require.Equal(t, 3, failures[0].Attempts)
		require.Contains(t, failures[0].LastError, "smtp unavailable")
	}
}

func TestDispatchEscalationResolvesNotifyUsers(t *testing.T) {
	s := baseSettings()
	s.CCEmails = nil
	s.RoleContacts = map[string]string{"supervisor": "boss@example.com"}
	f := newFixture(t, s)
	f.email.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	ev := leakEvent(entities.PriorityLow)
	ev.Type = entities.EventEscalationTriggered
	ev.Request.NotifyRoles = nil
	ev.Escalation = &entities.EscalationFired{
		Level: 1, ThresholdMinutes: 30,
		NotifyUsers: []string{"supervisor", "director@example.com", "unknown-role"},
		Actions:     []string{"notify"},
	}

	res := f.d.Dispatch(context.Background(), ev)
	require.Len(t, res.Outcomes, 3)
	f.email.AssertCalled(t, "Send", mock.Anything, "boss@example.com",
		"Escalation level 1: request req-1 at 1st Floor open for 30 minutes. Actions: notify")
	f.email.AssertCalled(t, "Send", mock.Anything, "director@example.com", mock.Anything)

	skipped := f.logs.FilterMessage("no contact configured for role, recipient skipped").
		FilterField(zap.String("role", "unknown-role"))
	require.Equal(t, 1, skipped.Len())
}

func TestDispatchMissingVariableRecordsFailure(t *testing.T) {
	s := baseSettings()
	s.CCEmails = nil
	s.RoleContacts = nil
	s.Templates[entities.TemplateNewRequest] = "Assigned to {assignee}"
	f := newFixture(t, s)

	res := f.d.Dispatch(context.Background(), leakEvent(entities.PriorityLow))
	require.Len(t, res.Outcomes, 1)
	require.False(t, res.Outcomes[0].Delivered)
	require.Contains(t, res.Outcomes[0].Error, "assignee")
	f.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	f := newFixture(t, baseSettings())
	for i := 0; i < 4; i++ {
		require.True(t, f.d.Enqueue(leakEvent(entities.PriorityLow)))
	}
	require.False(t, f.d.Enqueue(leakEvent(entities.PriorityLow)))
}

func TestRunDeliversQueuedEvents(t *testing.T) {
	s := baseSettings()
	s.CCEmails = nil
	s.RoleContacts = nil
	f := newFixture(t, s)
	delivered := make(chan struct{}, 1)
	f.email.On("Send", mock.Anything, "ops@example.com", mock.Anything).Return(nil).Run(func(mock.Arguments) {
		delivered <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.d.Run(ctx, time.Hour)
		close(done)
	}()

	require.True(t, f.d.Enqueue(leakEvent(entities.PriorityHigh)))
	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
	cancel()
	<-done
}

func TestBackoff(t *testing.T) {
	require.Equal(t, time.Duration(0), backoff(0, time.Second, time.Minute))
	require.Equal(t, time.Second, backoff(1, time.Second, time.Minute))
	require.Equal(t, 2*time.Second, backoff(2, time.Second, time.Minute))
	require.Equal(t, 8*time.Second, backoff(4, time.Second, time.Minute))
	require.Equal(t, 30*time.Second, backoff(10, time.Second, 30*time.Second))
}

func TestRunShutdownKeepsRetryBudget(t *testing.T) {
	s := baseSettings()
	s.CCEmails = nil
	s.RoleContacts = nil
	store := memory.New(zap.NewNop().Sugar())
	email := &senderMock{}
	started := make(chan struct{}, 1)
	email.On("Send", mock.Anything, "ops@example.com", mock.Anything).Return(errors.New("gateway down")).Run(func(mock.Arguments) {
		select {
		case started <- struct{}{}:
		default:
		}
	})

	cfg := config.DispatcherConfig{Workers: 1, QueueSize: 4, MaxAttempts: 3, BaseBackoff: 20 * time.Millisecond, MaxBackoff: 100 * time.Millisecond}
	d := New(zap.NewNop().Sugar(), &staticSettings{s: s}, map[entities.Channel]channel.Sender{entities.ChannelEmail: email}, store, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, time.Hour)
		close(done)
	}()

	require.True(t, d.Enqueue(leakEvent(entities.PriorityHigh)))
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first attempt not made")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}

	email.AssertNumberOfCalls(t, "Send", 3)
	failures, err := store.ListDeliveryFailures(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Equal(t, 3, failures[0].Attempts)
	require.Contains(t, failures[0].LastError, "gateway down")
	require.NotContains(t, failures[0].LastError, "context canceled")
}
