package usecase

import (
	"context"

	"facility-maintenance/internal/entities"
)

// RequestUsecaseInterface abstracts request lifecycle operations for the delivery layer.
type RequestUsecaseInterface interface {
	Submit(ctx context.Context, in entities.SubmitInput) (*entities.Request, error)
	Transition(ctx context.Context, id string, to entities.Status, note, actor string) (*entities.Request, error)
	Cancel(ctx context.Context, id, note, actor string) (*entities.Request, error)
	Assign(ctx context.Context, id, assignee, actor string) (*entities.Request, error)
	Request(ctx context.Context, id string) (*entities.Request, error)
	Requests(ctx context.Context, filter entities.RequestFilter) ([]entities.Request, error)
	DeliveryFailures(ctx context.Context, id string) ([]entities.DeliveryFailure, error)
}

// SettingsUsecaseInterface abstracts notification settings operations.
type SettingsUsecaseInterface interface {
	Settings(ctx context.Context) (*entities.NotificationSettings, error)
	SaveSettings(ctx context.Context, s entities.NotificationSettings) (*entities.NotificationSettings, error)
	ReloadSettings(ctx context.Context) (*entities.NotificationSettings, error)
}
