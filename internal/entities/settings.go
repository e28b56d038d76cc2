// Package entities contains core business entities.
package entities

import "time"

// ConditionKind selects how a priority rule inspects a request.
type ConditionKind string

const (
	// ConditionContains matches a case-insensitive substring of the description.
	ConditionContains ConditionKind = "contains"
	// ConditionLocation matches the location case-insensitively.
	ConditionLocation ConditionKind = "location"
	// ConditionOverride matches when the submitter asked for the given priority.
	ConditionOverride ConditionKind = "override"
	// ConditionAlways matches every request.
	ConditionAlways ConditionKind = "always"
)

// Condition is a single predicate of a priority rule.
type Condition struct {
	Kind  ConditionKind `json:"kind" validate:"required,oneof=contains location override always"`
	Value string        `json:"value,omitempty"`
}

// PriorityRule assigns a priority and notify roles to matching requests.
type PriorityRule struct {
	Condition         Condition `json:"condition"`
	Priority          Priority  `json:"priority" validate:"required,oneof=low medium high urgent"`
	NotifyRoles       []string  `json:"notify_roles,omitempty"`
	EscalationMinutes int       `json:"escalation_minutes" validate:"gte=0"`
}

// EscalationLevel fires once a request stays open past its threshold.
type EscalationLevel struct {
	ThresholdMinutes int      `json:"threshold_minutes" validate:"gt=0"`
	NotifyUsers      []string `json:"notify_users,omitempty"`
	Actions          []string `json:"actions,omitempty"`
}

// EscalationConfig groups escalation levels.
type EscalationConfig struct {
	Enabled       bool              `json:"enabled"`
	ApplyOffHours bool              `json:"apply_off_hours"`
	Levels        []EscalationLevel `json:"levels" validate:"dive"`
}

// WorkingHours bounds the time that counts toward escalation thresholds.
type WorkingHours struct {
	Start    string   `json:"start" validate:"required"`
	End      string   `json:"end" validate:"required"`
	Days     []string `json:"days" validate:"min=1,dive,oneof=mon tue wed thu fri sat sun"`
	Timezone string   `json:"timezone" validate:"required"`
}

// Frequency controls digest batching of non-urgent notifications.
type Frequency string

const (
	FrequencyInstant Frequency = "instant"
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
)

// Interval returns the digest flush period, zero for instant delivery.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	}
	return 0
}

// Template keys, one per notification event kind.
const (
	TemplateNewRequest    = "new_request"
	TemplateStatusChanged = "status_changed"
	TemplateEscalation    = "escalation"
	TemplateCompleted     = "completed"
)

// NotificationSettings is one saved version of the notification configuration.
// Holders treat it as read-only; changes go through a new version.
type NotificationSettings struct {
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`

	PrimaryEmail string   `json:"primary_email" validate:"omitempty,email"`
	CCEmails     []string `json:"cc_emails,omitempty" validate:"dive,email"`

	EmailNotifications    bool   `json:"email_notifications"`
	WhatsAppNotifications bool   `json:"whatsapp_notifications"`
	WhatsAppNumber        string `json:"whatsapp_number,omitempty" validate:"omitempty,phone"`
	SMSNotifications      bool   `json:"sms_notifications"`

	Frequency Frequency `json:"notification_frequency" validate:"required,oneof=instant hourly daily"`

	Templates        map[string]string `json:"templates"`
	TemplateDefaults map[string]string `json:"template_defaults,omitempty"`
	RoleContacts     map[string]string `json:"role_contacts,omitempty" validate:"dive,email"`

	WorkingHours  WorkingHours     `json:"working_hours"`
	Escalation    EscalationConfig `json:"escalation"`
	PriorityRules []PriorityRule   `json:"priority_rules" validate:"min=1,dive"`
}

// Clone returns a deep copy so callers can edit without touching a shared snapshot.
func (s NotificationSettings) Clone() NotificationSettings {
	s.CCEmails = append([]string(nil), s.CCEmails...)
	s.Templates = cloneMap(s.Templates)
	s.TemplateDefaults = cloneMap(s.TemplateDefaults)
	s.RoleContacts = cloneMap(s.RoleContacts)
	s.WorkingHours.Days = append([]string(nil), s.WorkingHours.Days...)
	levels := make([]EscalationLevel, len(s.Escalation.Levels))
	for i, l := range s.Escalation.Levels {
		l.NotifyUsers = append([]string(nil), l.NotifyUsers...)
		l.Actions = append([]string(nil), l.Actions...)
		levels[i] = l
	}
	s.Escalation.Levels = levels
	rules := make([]PriorityRule, len(s.PriorityRules))
	for i, r := range s.PriorityRules {
		r.NotifyRoles = append([]string(nil), r.NotifyRoles...)
		rules[i] = r
	}
	s.PriorityRules = rules
	return s
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// DefaultSettings is activated when nothing has been saved yet.
func DefaultSettings(primaryEmail string) NotificationSettings {
	return NotificationSettings{
		PrimaryEmail:       primaryEmail,
		EmailNotifications: true,
		Frequency:          FrequencyInstant,
		Templates: map[string]string{
			TemplateNewRequest:    "New maintenance request at {location} ({priority}): {description}",
			TemplateStatusChanged: "Request {id} at {location} moved from {old_status} to {new_status}. {note}",
			TemplateEscalation:    "Escalation level {level}: request {id} at {location} open for {threshold_minutes} minutes. Actions: {actions}",
			TemplateCompleted:     "Request {id} at {location} has been completed. {note}",
		},
		WorkingHours: WorkingHours{
			Start:    "09:00",
			End:      "17:00",
			Days:     []string{"mon", "tue", "wed", "thu", "fri"},
			Timezone: "UTC",
		},
		PriorityRules: []PriorityRule{
			{Condition: Condition{Kind: ConditionAlways}, Priority: PriorityMedium},
		},
	}
}
