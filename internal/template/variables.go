package template

import (
	"strconv"
	"strings"
	"time"

	"facility-maintenance/internal/entities"
)

// Variables builds the substitution map for ev. Optional values that are
// absent are omitted so configured defaults can take over.
func Variables(ev entities.Event) map[string]string {
	r := ev.Request
	vars := map[string]string{
		VarID:          r.ID,
		VarLocation:    r.Location,
		VarDescription: r.Description,
		VarPriority:    string(r.Priority),
		VarStatus:      string(r.CurrentStatus),
		VarSubmitter:   r.Submitter,
		VarCreatedAt:   r.CreatedAt.Format(time.RFC1123),
		VarTimestamp:   ev.OccurredAt.Format(time.RFC1123),
	}
	if r.Assignee != "" {
		vars[VarAssignee] = r.Assignee
	}

	switch ev.Type {
	case entities.EventStatusChanged, entities.EventCompleted:
		vars[VarOldStatus] = string(ev.OldStatus)
		vars[VarNewStatus] = string(ev.NewStatus)
		vars[VarNote] = ev.Note
		if ev.Actor != "" {
			vars[VarActor] = ev.Actor
		}
	case entities.EventEscalationTriggered:
		if esc := ev.Escalation; esc != nil {
			vars[VarLevel] = strconv.Itoa(esc.Level)
			vars[VarThresholdMinutes] = strconv.Itoa(esc.ThresholdMinutes)
			vars[VarActions] = strings.Join(esc.Actions, ", ")
		}
	}
	return vars
}
