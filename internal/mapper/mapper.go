// Package mapper converts between domain models and transport DTOs.
package mapper

import (
	"facility-maintenance/internal/entities"
	oapi "facility-maintenance/internal/oapi"
)

// FromOAPISubmit builds the submission input from the request body.
func FromOAPISubmit(src oapi.PostRequestsJSONRequestBody) entities.SubmitInput {
	in := entities.SubmitInput{
		Location:        src.Location,
		Description:     src.Description,
		IsAnonymous:     src.IsAnonymous,
		AttachmentCount: src.AttachmentCount,
	}
	if src.Name != nil {
		in.Name = *src.Name
	}
	if src.Phone != nil {
		in.Phone = *src.Phone
	}
	if src.Priority != nil {
		in.RequestedPriority = entities.Priority(*src.Priority)
	}
	return in
}

// ToOAPIRequest maps a request to its transport model. The submitter phone
// is not exposed.
func ToOAPIRequest(r entities.Request) oapi.Request {
	history := make([]oapi.StatusEntry, 0, len(r.StatusHistory))
	for _, e := range r.StatusHistory {
		history = append(history, oapi.StatusEntry{
			Status:    string(e.Status),
			Timestamp: e.Timestamp,
			Note:      e.Note,
			Actor:     optional(e.Actor),
		})
	}
	next := make([]string, 0, 3)
	for _, s := range r.CurrentStatus.Next() {
		next = append(next, string(s))
	}
	return oapi.Request{
		Id:                  r.ID,
		Location:            r.Location,
		Description:         r.Description,
		Priority:            string(r.Priority),
		Submitter:           r.Submitter,
		AttachmentCount:     r.AttachmentCount,
		Assignee:            optional(r.Assignee),
		CreatedAt:           r.CreatedAt,
		EstimatedCompletion: r.EstimatedCompletion,
		CurrentStatus:       string(r.CurrentStatus),
		Progress:            r.CurrentStatus.Progress(),
		NextStatuses:        next,
		StatusHistory:       history,
	}
}

// ToOAPIRequests maps a request listing.
func ToOAPIRequests(reqs []entities.Request) []oapi.Request {
	out := make([]oapi.Request, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, ToOAPIRequest(r))
	}
	return out
}

// ToOAPIFailures maps delivery failures.
func ToOAPIFailures(fs []entities.DeliveryFailure) []oapi.DeliveryFailure {
	out := make([]oapi.DeliveryFailure, 0, len(fs))
	for _, f := range fs {
		out = append(out, oapi.DeliveryFailure{
			EventId:   f.EventID,
			EventType: string(f.EventType),
			Channel:   string(f.Channel),
			Recipient: f.Recipient,
			Attempts:  f.Attempts,
			LastError: f.LastError,
			FailedAt:  f.FailedAt,
		})
	}
	return out
}

// ToOAPISettings maps settings to the transport model.
func ToOAPISettings(s entities.NotificationSettings) oapi.Settings {
	levels := make([]oapi.EscalationLevel, 0, len(s.Escalation.Levels))
	for _, l := range s.Escalation.Levels {
		levels = append(levels, oapi.EscalationLevel{
			ThresholdMinutes: l.ThresholdMinutes,
			NotifyUsers:      l.NotifyUsers,
			Actions:          l.Actions,
		})
	}
	rules := make([]oapi.PriorityRule, 0, len(s.PriorityRules))
	for _, r := range s.PriorityRules {
		rules = append(rules, oapi.PriorityRule{
			Condition:         oapi.Condition{Kind: string(r.Condition.Kind), Value: r.Condition.Value},
			Priority:          string(r.Priority),
			NotifyRoles:       r.NotifyRoles,
			EscalationMinutes: r.EscalationMinutes,
		})
	}
	cc := s.CCEmails
	if cc == nil {
		cc = []string{}
	}
	return oapi.Settings{
		Version:               s.Version,
		UpdatedAt:             s.UpdatedAt,
		PrimaryEmail:          s.PrimaryEmail,
		CcEmails:              cc,
		EmailNotifications:    s.EmailNotifications,
		WhatsappNotifications: s.WhatsAppNotifications,
		WhatsappNumber:        s.WhatsAppNumber,
		SmsNotifications:      s.SMSNotifications,
		NotificationFrequency: string(s.Frequency),
		Templates:             s.Templates,
		TemplateDefaults:      s.TemplateDefaults,
		RoleContacts:          s.RoleContacts,
		WorkingHours: oapi.WorkingHours{
			Start:    s.WorkingHours.Start,
			End:      s.WorkingHours.End,
			Days:     s.WorkingHours.Days,
			Timezone: s.WorkingHours.Timezone,
		},
		Escalation: oapi.Escalation{
			Enabled:       s.Escalation.Enabled,
			ApplyOffHours: s.Escalation.ApplyOffHours,
			Levels:        levels,
		},
		PriorityRules: rules,
	}
}

// FromOAPISettings builds settings from the transport model. Version and
// timestamp are assigned on save.
func FromOAPISettings(src oapi.Settings) entities.NotificationSettings {
	levels := make([]entities.EscalationLevel, 0, len(src.Escalation.Levels))
	for _, l := range src.Escalation.Levels {
		levels = append(levels, entities.EscalationLevel{
			ThresholdMinutes: l.ThresholdMinutes,
			NotifyUsers:      l.NotifyUsers,
			Actions:          l.Actions,
		})
	}
	rules := make([]entities.PriorityRule, 0, len(src.PriorityRules))
	for _, r := range src.PriorityRules {
		rules = append(rules, entities.PriorityRule{
			Condition:         entities.Condition{Kind: entities.ConditionKind(r.Condition.Kind), Value: r.Condition.Value},
			Priority:          entities.Priority(r.Priority),
			NotifyRoles:       r.NotifyRoles,
			EscalationMinutes: r.EscalationMinutes,
		})
	}
	return entities.NotificationSettings{
		PrimaryEmail:          src.PrimaryEmail,
		CCEmails:              src.CcEmails,
		EmailNotifications:    src.EmailNotifications,
		WhatsAppNotifications: src.WhatsappNotifications,
		WhatsAppNumber:        src.WhatsappNumber,
		SMSNotifications:      src.SmsNotifications,
		Frequency:             entities.Frequency(src.NotificationFrequency),
		Templates:             src.Templates,
		TemplateDefaults:      src.TemplateDefaults,
		RoleContacts:          src.RoleContacts,
		WorkingHours: entities.WorkingHours{
			Start:    src.WorkingHours.Start,
			End:      src.WorkingHours.End,
			Days:     src.WorkingHours.Days,
			Timezone: src.WorkingHours.Timezone,
		},
		Escalation: entities.EscalationConfig{
			Enabled:       src.Escalation.Enabled,
			ApplyOffHours: src.Escalation.ApplyOffHours,
			Levels:        levels,
		},
		PriorityRules: rules,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
