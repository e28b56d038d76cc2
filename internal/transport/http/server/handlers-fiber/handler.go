// Package handlers_fiber wires HTTP delivery components.
package handlers_fiber

import (
	"facility-maintenance/internal/oapi"
	"facility-maintenance/internal/usecase"

	"go.uber.org/zap"
)

var _ oapi.ServerInterface = (*Handler)(nil)

// Handler implements oapi.ServerInterface using service layer interfaces.
type Handler struct {
	log *zap.SugaredLogger
	uc  usecase.InterfaceUsecase
}

// NewHandler constructs an HTTP server with service dependencies.
func NewHandler(log *zap.SugaredLogger, usecase usecase.InterfaceUsecase) *Handler {
	return &Handler{
		log: log.Named("http"),
		uc:  usecase,
	}
}
