package template

import (
	"testing"
	"time"

	"facility-maintenance/internal/entities"

	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesVariables(t *testing.T) {
	out, err := Render("Leak at {location}: {description}", map[string]string{
		VarLocation:    "1st Floor",
		VarDescription: "Water leak in bathroom",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "Leak at 1st Floor: Water leak in bathroom", out)
}

func TestRenderUsesDefaults(t *testing.T) {
	out, err := Render("Assigned to {assignee}", map[string]string{}, map[string]string{VarAssignee: "the on-call team"})
	require.NoError(t, err)
	require.Equal(t, "Assigned to the on-call team", out)
}

func TestRenderMissingKnownVariable(t *testing.T) {
	_, err := Render("Assigned to {assignee}", map[string]string{}, nil)
	require.ErrorIs(t, err, entities.ErrMissingVariable)
	require.Contains(t, err.Error(), "assignee")
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	out, err := Render("Call {building_manager} about {location}", map[string]string{VarLocation: "Lobby"}, nil)
	require.NoError(t, err)
	require.Equal(t, "Call {building_manager} about Lobby", out)
}

func TestRenderEmptyValueCountsAsProvided(t *testing.T) {
	out, err := Render("Moved. {note}", map[string]string{VarNote: ""}, nil)
	require.NoError(t, err)
	require.Equal(t, "Moved. ", out)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		tmpl     string
		defaults map[string]string
		wantErr  error
	}{
		{name: "request vars", key: entities.TemplateNewRequest, tmpl: "{id} {location} {priority}"},
		{name: "status var outside status event", key: entities.TemplateNewRequest, tmpl: "{new_status}", wantErr: entities.ErrMissingVariable},
		{name: "escalation vars", key: entities.TemplateEscalation, tmpl: "level {level} after {threshold_minutes}"},
		{name: "optional without default", key: entities.TemplateStatusChanged, tmpl: "by {actor}", wantErr: entities.ErrMissingVariable},
		{name: "optional with default", key: entities.TemplateStatusChanged, tmpl: "by {actor}", defaults: map[string]string{VarActor: "staff"}},
		{name: "unknown placeholder ignored", key: entities.TemplateCompleted, tmpl: "{whatever}"},
		{name: "unknown key", key: "reminder", tmpl: "x", wantErr: entities.ErrInvalidSettings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.key, tt.tmpl, tt.defaults)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVariablesForEscalation(t *testing.T) {
	ev := entities.Event{
		Type:       entities.EventEscalationTriggered,
		Request:    entities.Request{ID: "r1", Location: "Roof", Priority: entities.PriorityLow, CurrentStatus: entities.StatusReviewing},
		OccurredAt: time.Date(2024, 2, 15, 9, 30, 0, 0, time.UTC),
		Escalation: &entities.EscalationFired{Level: 2, ThresholdMinutes: 120, Actions: []string{"call", "page"}},
	}
	vars := Variables(ev)
	require.Equal(t, "2", vars[VarLevel])
	require.Equal(t, "120", vars[VarThresholdMinutes])
	require.Equal(t, "call, page", vars[VarActions])
	require.NotContains(t, vars, VarAssignee)
	require.NotContains(t, vars, VarOldStatus)
}

func TestDefaultTemplatesValidate(t *testing.T) {
	s := entities.DefaultSettings("ops@example.com")
	for _, key := range Keys() {
		require.NoError(t, Validate(key, s.Templates[key], s.TemplateDefaults), key)
	}
}
