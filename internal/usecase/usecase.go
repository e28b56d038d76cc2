package usecase

import (
	"context"
	"time"

	"facility-maintenance/internal/repository"
	"facility-maintenance/internal/usecase/domain"

	"go.uber.org/zap"
)

// InterfaceUsecase aggregates all usecase interfaces.
type InterfaceUsecase interface {
	RequestUsecaseInterface
	SettingsUsecaseInterface
}

// New constructs a new usecase layer with its dependencies.
func New(
	log *zap.SugaredLogger,
	ctx context.Context,
	repo repository.Repository,
	settings domain.SettingsProvider,
	registry domain.Registry,
	events domain.Emitter,
	timeout time.Duration,
) InterfaceUsecase {
	return domain.New(log, ctx, repo, settings, registry, events, timeout)
}
