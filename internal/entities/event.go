// Package entities contains core business entities.
package entities

import "time"

// EventType enumerates lifecycle and escalation events.
type EventType string

const (
	EventNewRequest          EventType = "NewRequest"
	EventStatusChanged       EventType = "StatusChanged"
	EventEscalationTriggered EventType = "EscalationTriggered"
	EventCompleted           EventType = "Completed"
)

// TemplateKey maps the event to the template used to render it.
func (t EventType) TemplateKey() string {
	switch t {
	case EventNewRequest:
		return TemplateNewRequest
	case EventEscalationTriggered:
		return TemplateEscalation
	case EventCompleted:
		return TemplateCompleted
	}
	return TemplateStatusChanged
}

// Event is emitted by the lifecycle manager and the escalation scheduler.
type Event struct {
	ID         string
	Type       EventType
	Request    Request
	OldStatus  Status
	NewStatus  Status
	Note       string
	Actor      string
	Escalation *EscalationFired
	OccurredAt time.Time
}

// EscalationFired describes the level carried by an EscalationTriggered event.
type EscalationFired struct {
	Level            int
	ThresholdMinutes int
	NotifyUsers      []string
	Actions          []string
}

// Channel identifies a notification transport.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// ChannelOutcome is the delivery result for one channel and recipient.
type ChannelOutcome struct {
	Channel   Channel
	Recipient string
	Delivered bool
	Batched   bool
	Attempts  int
	Error     string
}

// DispatchResult reports every attempted channel for an event.
type DispatchResult struct {
	EventID  string
	Outcomes []ChannelOutcome
}

// Outcome returns the first outcome recorded for ch.
func (r DispatchResult) Outcome(ch Channel) (ChannelOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Channel == ch {
			return o, true
		}
	}
	return ChannelOutcome{}, false
}

// DeliveryFailure is recorded when a channel send exhausts its retries.
type DeliveryFailure struct {
	EventID   string
	EventType EventType
	RequestID string
	Channel   Channel
	Recipient string
	Attempts  int
	LastError string
	FailedAt  time.Time
}
