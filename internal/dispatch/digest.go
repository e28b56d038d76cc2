package dispatch

import (
	"context"
	"fmt"
	"strings"

	"facility-maintenance/internal/entities"
	"facility-maintenance/internal/metrics"
)

type digestKey = target

// digestItem is one batched message together with the event it came from.
type digestItem struct {
	eventID   string
	eventType entities.EventType
	requestID string
	msg       string
}

func (d *Dispatcher) addDigest(t target, ev entities.Event, msg string) {
	d.digestMu.Lock()
	defer d.digestMu.Unlock()

	d.digests[t] = append(d.digests[t], digestItem{
		eventID:   ev.ID,
		eventType: ev.Type,
		requestID: ev.Request.ID,
		msg:       msg,
	})
	metrics.DigestPending.Inc()
}

// Pending returns the number of batched messages waiting for a flush.
func (d *Dispatcher) Pending() int {
	d.digestMu.Lock()
	defer d.digestMu.Unlock()

	n := 0
	for _, items := range d.digests {
		n += len(items)
	}
	return n
}

func (d *Dispatcher) flushIfDue(ctx context.Context) {
	s := d.settings.Current()
	interval := entities.FrequencyInstant.Interval()
	if s != nil {
		interval = s.Frequency.Interval()
	}

	d.digestMu.Lock()
	due := interval == 0 || d.now().Sub(d.lastFlush) >= interval
	d.digestMu.Unlock()

	if due {
		d.FlushDigests(ctx)
	}
}

// FlushDigests sends one combined message per channel and recipient. A failed
// digest is recorded against every event it carried.
func (d *Dispatcher) FlushDigests(ctx context.Context) []entities.ChannelOutcome {
	d.digestMu.Lock()
	pending := d.digests
	d.digests = make(map[digestKey][]digestItem)
	d.lastFlush = d.now()
	d.digestMu.Unlock()

	outcomes := make([]entities.ChannelOutcome, 0, len(pending))
	for t, items := range pending {
		metrics.DigestPending.Sub(float64(len(items)))
		out := d.deliver(ctx, t, digestBody(items))
		if !out.Delivered {
			for _, it := range items {
				d.recordFailure(ctx, entities.Event{
					ID:      it.eventID,
					Type:    it.eventType,
					Request: entities.Request{ID: it.requestID},
				}, out)
			}
		}
		outcomes = append(outcomes, out)
	}
	if len(pending) > 0 {
		d.log.Infow("digests flushed", "recipients", len(pending))
	}
	return outcomes
}

func digestBody(items []digestItem) string {
	if len(items) == 1 {
		return items[0].msg
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d maintenance updates:\n", len(items))
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. %s", i+1, it.msg)
	}
	return b.String()
}
