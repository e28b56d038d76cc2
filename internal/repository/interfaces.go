// Package repository contains repository interfaces for persistence layers.
package repository

import (
	"context"
	"time"

	"facility-maintenance/internal/entities"
)

// LifecycleInterface describes storage startup/shutdown hooks.
type LifecycleInterface interface {
	OnStart(_ context.Context) error
	OnStop(_ context.Context) error
}

// RequestInterface exposes maintenance request storage.
type RequestInterface interface {
	CreateRequest(ctx context.Context, req entities.Request) (*entities.Request, error)
	GetRequest(ctx context.Context, id string) (*entities.Request, error)
	ListRequests(ctx context.Context, filter entities.RequestFilter) ([]entities.Request, error)
	ListOpenRequests(ctx context.Context) ([]entities.Request, error)
	// UpdateRequest loads the request under an exclusive lock, applies fn and
	// persists appended history entries and the assignee. An error from fn
	// aborts the update and leaves the stored request unchanged.
	UpdateRequest(ctx context.Context, id string, fn func(req *entities.Request) error) (*entities.Request, error)
}

// SettingsInterface exposes versioned notification settings.
type SettingsInterface interface {
	ActiveSettings(ctx context.Context) (*entities.NotificationSettings, error)
	SaveSettings(ctx context.Context, s entities.NotificationSettings) (*entities.NotificationSettings, error)
}

// EscalationInterface records fired escalation levels.
type EscalationInterface interface {
	// MarkEscalated stores the level and reports whether it was new.
	MarkEscalated(ctx context.Context, requestID string, thresholdMinutes int, at time.Time) (bool, error)
	FiredEscalations(ctx context.Context, requestID string) ([]int, error)
}

// DeliveryInterface records notifications that could not be delivered.
type DeliveryInterface interface {
	RecordDeliveryFailure(ctx context.Context, f entities.DeliveryFailure) error
	ListDeliveryFailures(ctx context.Context, requestID string) ([]entities.DeliveryFailure, error)
}
