// Package priority assigns priorities to requests from ordered rules.
package priority

import (
	"fmt"
	"strings"

	"facility-maintenance/internal/entities"
)

// Subject is the part of a request the rules look at.
type Subject struct {
	Location          string
	Description       string
	RequestedPriority entities.Priority
}

// Match returns the first rule matching s and its index. The rule list must
// satisfy ValidateRules; an invalid list without a match falls back to medium.
func Match(s Subject, rules []entities.PriorityRule) (entities.PriorityRule, int) {
	for i, r := range rules {
		if matches(r.Condition, s) {
			return r, i
		}
	}
	return entities.PriorityRule{Condition: entities.Condition{Kind: entities.ConditionAlways}, Priority: entities.PriorityMedium}, -1
}

// Classify returns the priority of the first matching rule.
func Classify(s Subject, rules []entities.PriorityRule) entities.Priority {
	r, _ := Match(s, rules)
	return r.Priority
}

func matches(c entities.Condition, s Subject) bool {
	switch c.Kind {
	case entities.ConditionAlways:
		return true
	case entities.ConditionContains:
		return c.Value != "" && strings.Contains(strings.ToLower(s.Description), strings.ToLower(c.Value))
	case entities.ConditionLocation:
		return strings.EqualFold(strings.TrimSpace(s.Location), strings.TrimSpace(c.Value))
	case entities.ConditionOverride:
		return s.RequestedPriority != "" && strings.EqualFold(string(s.RequestedPriority), c.Value)
	}
	return false
}

// ValidateRules enforces that rules is non-empty, well formed and ends in a
// match-all rule, which guarantees Match always finds one.
func ValidateRules(rules []entities.PriorityRule) error {
	if len(rules) == 0 {
		return fmt.Errorf("%w: at least one priority rule is required", entities.ErrInvalidSettings)
	}
	for i, r := range rules {
		if !r.Priority.Valid() {
			return fmt.Errorf("%w: rule %d has unknown priority %q", entities.ErrInvalidSettings, i, r.Priority)
		}
		switch r.Condition.Kind {
		case entities.ConditionAlways:
		case entities.ConditionContains, entities.ConditionLocation:
			if strings.TrimSpace(r.Condition.Value) == "" {
				return fmt.Errorf("%w: rule %d %s condition needs a value", entities.ErrInvalidSettings, i, r.Condition.Kind)
			}
		case entities.ConditionOverride:
			if !entities.Priority(strings.ToLower(r.Condition.Value)).Valid() {
				return fmt.Errorf("%w: rule %d override must name a priority", entities.ErrInvalidSettings, i)
			}
		default:
			return fmt.Errorf("%w: rule %d has unknown condition %q", entities.ErrInvalidSettings, i, r.Condition.Kind)
		}
		if r.EscalationMinutes < 0 {
			return fmt.Errorf("%w: rule %d escalation minutes must not be negative", entities.ErrInvalidSettings, i)
		}
	}
	if last := rules[len(rules)-1]; last.Condition.Kind != entities.ConditionAlways {
		return fmt.Errorf("%w: last priority rule must match all requests", entities.ErrInvalidSettings)
	}
	return nil
}
