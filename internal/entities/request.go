// Package entities contains core business entities.
package entities

import "time"

// Status enumerates request lifecycle states.
type Status string

const (
	// StatusSubmitted marks a freshly created request.
	StatusSubmitted Status = "submitted"
	// StatusReviewing marks a request under review by the maintenance team.
	StatusReviewing Status = "reviewing"
	// StatusInProgress marks a request being worked on.
	StatusInProgress Status = "in-progress"
	// StatusPendingVerification marks finished work awaiting sign-off.
	StatusPendingVerification Status = "pending-verification"
	// StatusCompleted is terminal.
	StatusCompleted Status = "completed"
	// StatusCancelled is terminal.
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusSubmitted:           {StatusReviewing, StatusCancelled},
	StatusReviewing:           {StatusInProgress, StatusCancelled},
	StatusInProgress:          {StatusPendingVerification, StatusCancelled},
	StatusPendingVerification: {StatusCompleted, StatusInProgress, StatusCancelled},
	StatusCompleted:           nil,
	StatusCancelled:           nil,
}

var progress = map[Status]int{
	StatusSubmitted:           20,
	StatusReviewing:           40,
	StatusInProgress:          60,
	StatusPendingVerification: 80,
	StatusCompleted:           100,
	StatusCancelled:           0,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transitions leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether the state machine permits s -> next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Next lists permitted successors of s.
func (s Status) Next() []Status {
	return append([]Status(nil), transitions[s]...)
}

// Progress returns completion percentage shown on the request timeline.
func (s Status) Progress() int {
	return progress[s]
}

// Priority enumerates request urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Expedited reports whether p bypasses digest batching and off-hours pauses.
func (p Priority) Expedited() bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// AnonymousSubmitter is recorded when the submitter hides their name.
const AnonymousSubmitter = "Anonymous"

// StatusEntry is an immutable record of one lifecycle transition.
type StatusEntry struct {
	Status    Status
	Timestamp time.Time
	Note      string
	Actor     string
}

// Request is a maintenance request tracked through its lifecycle.
type Request struct {
	ID                  string
	Location            string
	Description         string
	Priority            Priority
	Submitter           string
	Phone               string
	AttachmentCount     int
	Assignee            string
	NotifyRoles         []string
	SLAMinutes          int
	CreatedAt           time.Time
	EstimatedCompletion *time.Time
	CurrentStatus       Status
	StatusHistory       []StatusEntry
}

// Append records a transition and moves CurrentStatus along with it.
func (r *Request) Append(entry StatusEntry) {
	r.StatusHistory = append(r.StatusHistory, entry)
	r.CurrentStatus = entry.Status
}

// LastEntry returns the most recent history entry.
func (r *Request) LastEntry() (StatusEntry, bool) {
	if len(r.StatusHistory) == 0 {
		return StatusEntry{}, false
	}
	return r.StatusHistory[len(r.StatusHistory)-1], true
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r Request) Clone() Request {
	r.NotifyRoles = append([]string(nil), r.NotifyRoles...)
	r.StatusHistory = append([]StatusEntry(nil), r.StatusHistory...)
	if r.EstimatedCompletion != nil {
		ec := *r.EstimatedCompletion
		r.EstimatedCompletion = &ec
	}
	return r
}

// SubmitInput carries what the submission front end sends.
type SubmitInput struct {
	Location          string `validate:"required"`
	Description       string `validate:"required,min=10"`
	IsAnonymous       bool
	Name              string   `validate:"omitempty,max=200"`
	Phone             string   `validate:"omitempty,phone"`
	AttachmentCount   int      `validate:"gte=0"`
	RequestedPriority Priority `validate:"omitempty,oneof=low medium high urgent"`
}

// RequestFilter narrows request listings.
type RequestFilter struct {
	Status *Status
	Limit  int
}
