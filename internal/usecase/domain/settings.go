package domain

import (
	"context"

	"facility-maintenance/internal/entities"
)

// Settings returns the active settings version.
func (u *Usecase) Settings(_ context.Context) (*entities.NotificationSettings, error) {
	s := u.settings.Current()
	if s == nil {
		return nil, entities.ErrSettingsNotFound
	}
	out := s.Clone()
	return &out, nil
}

// SaveSettings validates and activates a new settings version.
func (u *Usecase) SaveSettings(ctx context.Context, s entities.NotificationSettings) (*entities.NotificationSettings, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	saved, err := u.settings.Save(ctx, s)
	if err != nil {
		u.log.Warnw("settings rejected", "error", err)
		return nil, err
	}
	return saved, nil
}

// ReloadSettings re-reads the stored settings so edits made elsewhere apply
// without a restart.
func (u *Usecase) ReloadSettings(ctx context.Context) (*entities.NotificationSettings, error) {
	ctx, cancel := withTimeout(ctx, u.timeout)
	defer cancel()

	return u.settings.Reload(ctx)
}
