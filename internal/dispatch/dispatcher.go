// Package dispatch renders lifecycle events and delivers them over the
// enabled channels.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"facility-maintenance/config"
	"facility-maintenance/internal/channel"
	"facility-maintenance/internal/entities"
	"facility-maintenance/internal/metrics"
	"facility-maintenance/internal/template"

	"go.uber.org/zap"
)

// SettingsSource yields the active settings snapshot.
type SettingsSource interface {
	Current() *entities.NotificationSettings
}

// FailureStore records deliveries that exhausted their retries.
type FailureStore interface {
	RecordDeliveryFailure(ctx context.Context, f entities.DeliveryFailure) error
}

// Dispatcher consumes events from a bounded queue with a fixed worker pool.
type Dispatcher struct {
	log      *zap.SugaredLogger
	settings SettingsSource
	senders  map[entities.Channel]channel.Sender
	failures FailureStore
	cfg      config.DispatcherConfig

	queue chan entities.Event
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	digestMu  sync.Mutex
	digests   map[digestKey][]digestItem
	lastFlush time.Time
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithSleep replaces the backoff wait between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = sleep }
}

// New creates a Dispatcher. Channels missing from senders are never attempted.
func New(
	log *zap.SugaredLogger,
	settings SettingsSource,
	senders map[entities.Channel]channel.Sender,
	failures FailureStore,
	cfg config.DispatcherConfig,
	opts ...Option,
) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	d := &Dispatcher{
		log:      log.Named("dispatch"),
		settings: settings,
		senders:  senders,
		failures: failures,
		cfg:      cfg,
		queue:    make(chan entities.Event, cfg.QueueSize),
		now:      time.Now,
		sleep:    sleepCtx,
		digests:  make(map[digestKey][]digestItem),
	}
	for _, o := range opts {
		o(d)
	}
	d.lastFlush = d.now()
	return d
}

// Enqueue hands ev to the workers without blocking. It reports false when the
// queue is full and the event was dropped.
func (d *Dispatcher) Enqueue(ev entities.Event) bool {
	select {
	case d.queue <- ev:
		return true
	default:
		metrics.EventsDropped.Inc()
		d.log.Errorw("dispatch queue full, event dropped", "event_id", ev.ID, "type", ev.Type, "request_id", ev.Request.ID)
		return false
	}
}

// Run starts the workers and the digest timer and blocks until ctx is done.
// Cancelling ctx stops intake only: sends in flight keep their retries for up
// to one retry budget, then queued events are drained and digests flushed.
func (d *Dispatcher) Run(ctx context.Context, digestCheck time.Duration) {
	sendCtx, stopSends := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSends()

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx, sendCtx)
		}()
	}

	ticker := time.NewTicker(digestCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			grace := time.AfterFunc(d.retryBudget(), stopSends)
			wg.Wait()
			grace.Stop()
			d.drain()
			return
		case <-ticker.C:
			d.flushIfDue(sendCtx)
		}
	}
}

// worker takes events until stop is done and delivers them with sendCtx.
func (d *Dispatcher) worker(stop, sendCtx context.Context) {
	for {
		select {
		case <-stop.Done():
			return
		case ev := <-d.queue:
			d.Dispatch(sendCtx, ev)
		}
	}
}

// retryBudget bounds one full delivery: every attempt plus the waits between them.
func (d *Dispatcher) retryBudget() time.Duration {
	budget := d.cfg.SendTimeout*time.Duration(d.cfg.MaxAttempts) + time.Second
	for attempt := 1; attempt < d.cfg.MaxAttempts; attempt++ {
		budget += backoff(attempt, d.cfg.BaseBackoff, d.cfg.MaxBackoff)
	}
	return budget
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.retryBudget())
	defer cancel()
	for {
		select {
		case ev := <-d.queue:
			d.Dispatch(ctx, ev)
		default:
			d.FlushDigests(ctx)
			return
		}
	}
}

// Dispatch renders ev and delivers it to every resolved recipient. Channels
// are attempted independently; partial failure is reported per outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, ev entities.Event) entities.DispatchResult {
	result := entities.DispatchResult{EventID: ev.ID}
	s := d.settings.Current()
	if s == nil {
		d.log.Errorw("no active settings, event skipped", "event_id", ev.ID)
		return result
	}

	targets := d.recipients(s, ev)
	if len(targets) == 0 {
		return result
	}

	key := ev.Type.TemplateKey()
	msg, err := template.Render(s.Templates[key], template.Variables(ev), s.TemplateDefaults)
	if err != nil {
		d.log.Errorw("failed to render template", "error", err, "template", key, "event_id", ev.ID)
		for _, t := range targets {
			out := entities.ChannelOutcome{Channel: t.channel, Recipient: t.recipient, Error: err.Error()}
			d.recordFailure(ctx, ev, out)
			result.Outcomes = append(result.Outcomes, out)
		}
		return result
	}

	batch := s.Frequency.Interval() > 0 && !ev.Request.Priority.Expedited() && ev.Type != entities.EventEscalationTriggered

	result.Outcomes = make([]entities.ChannelOutcome, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		if batch {
			d.addDigest(t, ev, msg)
			result.Outcomes[i] = entities.ChannelOutcome{Channel: t.channel, Recipient: t.recipient, Batched: true}
			metrics.Deliveries.WithLabelValues(string(t.channel), "batched").Inc()
			continue
		}
		wg.Add(1)
		go func(i int, t target) {
			defer wg.Done()
			out := d.deliver(ctx, t, msg)
			if !out.Delivered {
				d.recordFailure(ctx, ev, out)
			}
			result.Outcomes[i] = out
		}(i, t)
	}
	wg.Wait()

	d.log.Infow("event dispatched", "event_id", ev.ID, "type", ev.Type, "request_id", ev.Request.ID, "outcomes", len(result.Outcomes))
	return result
}

// deliver sends msg with bounded retries.
func (d *Dispatcher) deliver(ctx context.Context, t target, msg string) entities.ChannelOutcome {
	out := entities.ChannelOutcome{Channel: t.channel, Recipient: t.recipient}
	sender := d.senders[t.channel]
	start := time.Now()

	var err error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		out.Attempts = attempt
		err = d.sendOnce(ctx, sender, t.recipient, msg)
		if err == nil {
			break
		}
		d.log.Warnw("send attempt failed", "channel", t.channel, "to", t.recipient, "attempt", attempt, "error", err)
		if attempt == d.cfg.MaxAttempts {
			break
		}
		if serr := d.sleep(ctx, backoff(attempt, d.cfg.BaseBackoff, d.cfg.MaxBackoff)); serr != nil {
			d.log.Warnw("retry wait interrupted", "channel", t.channel, "to", t.recipient, "attempt", attempt, "error", serr)
			break
		}
	}

	metrics.DeliveryLatency.WithLabelValues(string(t.channel)).Observe(time.Since(start).Seconds())
	if err != nil {
		out.Error = err.Error()
		metrics.Deliveries.WithLabelValues(string(t.channel), "failed").Inc()
		return out
	}
	out.Delivered = true
	metrics.Deliveries.WithLabelValues(string(t.channel), "delivered").Inc()
	return out
}

func (d *Dispatcher) sendOnce(ctx context.Context, sender channel.Sender, to, msg string) error {
	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
	}
	if err := sender.Send(ctx, to, msg); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrDispatchFailed, err)
	}
	return nil
}

func (d *Dispatcher) recordFailure(ctx context.Context, ev entities.Event, out entities.ChannelOutcome) {
	if d.failures == nil {
		return
	}
	f := entities.DeliveryFailure{
		EventID:   ev.ID,
		EventType: ev.Type,
		RequestID: ev.Request.ID,
		Channel:   out.Channel,
		Recipient: out.Recipient,
		Attempts:  out.Attempts,
		LastError: out.Error,
		FailedAt:  d.now(),
	}
	if err := d.failures.RecordDeliveryFailure(context.WithoutCancel(ctx), f); err != nil {
		d.log.Errorw("failed to record delivery failure", "error", err, "event_id", ev.ID, "channel", out.Channel)
		return
	}
	d.log.Errorw("delivery failed", "event_id", ev.ID, "channel", out.Channel, "to", out.Recipient, "attempts", out.Attempts, "error", out.Error)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoff returns base * 2^(attempt-1), capped at limit.
func backoff(attempt int, base, limit time.Duration) time.Duration {
	if attempt <= 0 || base <= 0 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
