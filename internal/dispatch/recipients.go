package dispatch

import (
	"strings"

	"facility-maintenance/internal/entities"
)

type target struct {
	channel   entities.Channel
	recipient string
}

// recipients resolves the enabled channels for ev. Disabled channels produce
// no target at all.
func (d *Dispatcher) recipients(s *entities.NotificationSettings, ev entities.Event) []target {
	var out []target
	seen := make(map[target]bool)
	add := func(ch entities.Channel, to string) {
		to = strings.TrimSpace(to)
		if to == "" {
			return
		}
		if _, ok := d.senders[ch]; !ok {
			return
		}
		t := target{channel: ch, recipient: to}
		if seen[t] {
			return
		}
		seen[t] = true
		out = append(out, t)
	}

	if s.EmailNotifications {
		add(entities.ChannelEmail, s.PrimaryEmail)
		for _, cc := range s.CCEmails {
			add(entities.ChannelEmail, cc)
		}
		for _, who := range extraContacts(ev) {
			addr, ok := resolveContact(s, who)
			if !ok {
				d.log.Warnw("no contact configured for role, recipient skipped",
					"role", who, "event_id", ev.ID, "type", ev.Type, "request_id", ev.Request.ID)
				continue
			}
			add(entities.ChannelEmail, addr)
		}
	}
	if s.WhatsAppNotifications {
		add(entities.ChannelWhatsApp, s.WhatsAppNumber)
	}
	if s.SMSNotifications {
		add(entities.ChannelSMS, ev.Request.Phone)
	}
	return out
}

// extraContacts lists role names or addresses the event asks to notify.
func extraContacts(ev entities.Event) []string {
	switch ev.Type {
	case entities.EventNewRequest:
		return ev.Request.NotifyRoles
	case entities.EventEscalationTriggered:
		if ev.Escalation != nil {
			return ev.Escalation.NotifyUsers
		}
	}
	return nil
}

// resolveContact maps a role name to its configured address. Addresses pass
// through; ok is false for a role without a contact.
func resolveContact(s *entities.NotificationSettings, who string) (string, bool) {
	if strings.Contains(who, "@") {
		return who, true
	}
	addr := strings.TrimSpace(s.RoleContacts[strings.ToLower(strings.TrimSpace(who))])
	return addr, addr != ""
}
