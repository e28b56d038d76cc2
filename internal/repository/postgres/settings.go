package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"facility-maintenance/internal/entities"

	"github.com/jackc/pgx/v5"
)

const (
	selectActiveSettingsQuery = `SELECT version, payload, created_at FROM notification_settings ORDER BY version DESC LIMIT 1`
	insertSettingsQuery       = `INSERT INTO notification_settings(payload) VALUES ($1) RETURNING version, created_at`
)

// ActiveSettings returns the newest saved settings version.
func (p *Postgres) ActiveSettings(ctx context.Context) (*entities.NotificationSettings, error) {
	var (
		version   int64
		payload   []byte
		createdAt time.Time
	)
	if err := p.db.QueryRow(ctx, selectActiveSettingsQuery).Scan(&version, &payload, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrSettingsNotFound
		}
		p.log.Errorw("failed to select settings", "error", err)
		return nil, fmt.Errorf("get settings: %w", err)
	}

	var s entities.NotificationSettings
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decode settings v%d: %w", version, err)
	}
	s.Version = version
	s.UpdatedAt = createdAt
	return &s, nil
}

// SaveSettings stores s as a new version; older versions are kept for audit.
func (p *Postgres) SaveSettings(ctx context.Context, s entities.NotificationSettings) (*entities.NotificationSettings, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}

	out := s.Clone()
	if err := p.db.QueryRow(ctx, insertSettingsQuery, payload).Scan(&out.Version, &out.UpdatedAt); err != nil {
		p.log.Errorw("failed to insert settings", "error", err)
		return nil, fmt.Errorf("save settings: %w", err)
	}

	p.log.Infow("settings saved", "version", out.Version)
	return &out, nil
}
