// Package template renders operator-authored notification templates.
//
// Placeholders use the {name} form. Names from the known variable set must
// resolve to a value or a configured default; anything else in braces is left
// as written.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"facility-maintenance/internal/entities"
)

var placeholder = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Variable names the renderer knows how to supply.
const (
	VarID               = "id"
	VarLocation         = "location"
	VarDescription      = "description"
	VarPriority         = "priority"
	VarStatus           = "status"
	VarOldStatus        = "old_status"
	VarNewStatus        = "new_status"
	VarNote             = "note"
	VarActor            = "actor"
	VarSubmitter        = "submitter"
	VarAssignee         = "assignee"
	VarLevel            = "level"
	VarThresholdMinutes = "threshold_minutes"
	VarActions          = "actions"
	VarCreatedAt        = "created_at"
	VarTimestamp        = "timestamp"
)

var requestVars = []string{
	VarID, VarLocation, VarDescription, VarPriority, VarStatus,
	VarSubmitter, VarCreatedAt, VarTimestamp,
}

// optional variables are only present when the request carries them, so
// templates using them need a default.
var optional = []string{VarAssignee, VarActor}

// provided lists variables each template key can count on at send time.
var provided = map[string][]string{
	entities.TemplateNewRequest:    requestVars,
	entities.TemplateStatusChanged: append(append([]string(nil), requestVars...), VarOldStatus, VarNewStatus, VarNote),
	entities.TemplateCompleted:     append(append([]string(nil), requestVars...), VarOldStatus, VarNewStatus, VarNote),
	entities.TemplateEscalation:    append(append([]string(nil), requestVars...), VarLevel, VarThresholdMinutes, VarActions),
}

var known = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, v := range optional {
		m[v] = struct{}{}
	}
	for _, vars := range provided {
		for _, v := range vars {
			m[v] = struct{}{}
		}
	}
	return m
}()

// Known reports whether name is a variable the renderer supplies.
func Known(name string) bool {
	_, ok := known[name]
	return ok
}

// Render substitutes placeholders in tmpl with vars, falling back to defaults.
func Render(tmpl string, vars, defaults map[string]string) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		if v, ok := defaults[name]; ok {
			return v
		}
		if Known(name) {
			missing = append(missing, name)
		}
		return m
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", entities.ErrMissingVariable, strings.Join(dedupe(missing), ", "))
	}
	return out, nil
}

// Validate checks that every known placeholder of tmpl is supplied for key
// or has a default, so misconfiguration surfaces when settings are saved.
func Validate(key, tmpl string, defaults map[string]string) error {
	vars, ok := provided[key]
	if !ok {
		return fmt.Errorf("%w: unknown template %q", entities.ErrInvalidSettings, key)
	}
	avail := make(map[string]struct{}, len(vars))
	for _, v := range vars {
		avail[v] = struct{}{}
	}
	var missing []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if !Known(name) {
			continue
		}
		if _, ok := avail[name]; ok {
			continue
		}
		if _, ok := defaults[name]; ok {
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: template %q uses %s", entities.ErrMissingVariable, key, strings.Join(dedupe(missing), ", "))
	}
	return nil
}

// Keys returns the template keys in stable order.
func Keys() []string {
	keys := make([]string, 0, len(provided))
	for k := range provided {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
