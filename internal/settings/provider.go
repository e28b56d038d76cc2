// Package settings holds the active notification settings snapshot.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"facility-maintenance/internal/entities"
	"facility-maintenance/internal/escalation"
	"facility-maintenance/internal/priority"
	"facility-maintenance/internal/template"
	"facility-maintenance/pkg/validate"

	"go.uber.org/zap"
)

// Store persists settings versions.
type Store interface {
	ActiveSettings(ctx context.Context) (*entities.NotificationSettings, error)
	SaveSettings(ctx context.Context, s entities.NotificationSettings) (*entities.NotificationSettings, error)
}

// Provider serves an immutable snapshot to readers. A save swaps the pointer,
// so in-flight readers keep the version they started with.
type Provider struct {
	log      *zap.SugaredLogger
	store    Store
	defaults entities.NotificationSettings

	current atomic.Pointer[entities.NotificationSettings]
	saveMu  sync.Mutex
}

// New creates a Provider serving defaults until Reload succeeds.
func New(log *zap.SugaredLogger, store Store, defaults entities.NotificationSettings) *Provider {
	p := &Provider{
		log:      log.Named("settings"),
		store:    store,
		defaults: defaults.Clone(),
	}
	d := defaults.Clone()
	p.current.Store(&d)
	return p
}

// Current returns the active snapshot. Callers must not modify it.
func (p *Provider) Current() *entities.NotificationSettings {
	return p.current.Load()
}

// Reload loads the newest stored version. When nothing is stored the defaults
// are persisted as the first version. An invalid stored version is rejected and
// the current snapshot stays active.
func (p *Provider) Reload(ctx context.Context) (*entities.NotificationSettings, error) {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	s, err := p.store.ActiveSettings(ctx)
	if errors.Is(err, entities.ErrSettingsNotFound) {
		p.log.Infow("no stored settings, seeding defaults")
		s, err = p.store.SaveSettings(ctx, p.defaults.Clone())
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(s); err != nil {
		p.log.Errorw("stored settings rejected", "error", err, "version", s.Version)
		return nil, err
	}

	p.current.Store(s)
	p.log.Infow("settings loaded", "version", s.Version)
	return s, nil
}

// Save validates s, stores it as a new version and makes it active.
func (p *Provider) Save(ctx context.Context, s entities.NotificationSettings) (*entities.NotificationSettings, error) {
	s = normalize(s)
	if err := Validate(&s); err != nil {
		return nil, err
	}

	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	saved, err := p.store.SaveSettings(ctx, s)
	if err != nil {
		return nil, err
	}
	p.current.Store(saved)
	p.log.Infow("settings saved", "version", saved.Version)
	return saved, nil
}

// Validate checks s as a whole; it never partially applies.
func Validate(s *entities.NotificationSettings) error {
	if s == nil {
		return fmt.Errorf("%w: settings are empty", entities.ErrInvalidSettings)
	}
	if err := validate.Struct(s, entities.ErrInvalidSettings); err != nil {
		return err
	}
	if s.EmailNotifications && s.PrimaryEmail == "" {
		return fmt.Errorf("%w: primary_email is required when email notifications are enabled", entities.ErrInvalidSettings)
	}
	if s.WhatsAppNotifications && s.WhatsAppNumber == "" {
		return fmt.Errorf("%w: whatsapp_number is required when whatsapp notifications are enabled", entities.ErrInvalidSettings)
	}
	if err := priority.ValidateRules(s.PriorityRules); err != nil {
		return err
	}
	if err := escalation.ValidateLevels(s.Escalation.Levels); err != nil {
		return err
	}
	if _, err := escalation.ParseWorkingHours(s.WorkingHours); err != nil {
		return err
	}
	for _, key := range template.Keys() {
		tmpl, ok := s.Templates[key]
		if !ok || strings.TrimSpace(tmpl) == "" {
			return fmt.Errorf("%w: template %q is required", entities.ErrInvalidSettings, key)
		}
	}
	for key, tmpl := range s.Templates {
		if err := template.Validate(key, tmpl, s.TemplateDefaults); err != nil {
			return err
		}
	}
	return nil
}

func normalize(s entities.NotificationSettings) entities.NotificationSettings {
	s = s.Clone()
	s.PrimaryEmail = strings.TrimSpace(s.PrimaryEmail)
	s.WhatsAppNumber = strings.TrimSpace(s.WhatsAppNumber)
	for i := range s.CCEmails {
		s.CCEmails[i] = strings.TrimSpace(s.CCEmails[i])
	}
	for i := range s.WorkingHours.Days {
		s.WorkingHours.Days[i] = strings.ToLower(strings.TrimSpace(s.WorkingHours.Days[i]))
	}
	if len(s.RoleContacts) > 0 {
		roles := make(map[string]string, len(s.RoleContacts))
		for role, addr := range s.RoleContacts {
			roles[strings.ToLower(strings.TrimSpace(role))] = strings.TrimSpace(addr)
		}
		s.RoleContacts = roles
	}
	if s.Frequency == "" {
		s.Frequency = entities.FrequencyInstant
	}
	return s
}
