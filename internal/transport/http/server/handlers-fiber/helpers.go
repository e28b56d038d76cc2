package handlers_fiber

import (
	"errors"
	"net/http"

	"facility-maintenance/internal/entities"
	api "facility-maintenance/internal/oapi"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	status, _ := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Errorw("request failed", "error", err, "path", c.Path())
	}
	return writeError(c, err)
}

func writeError(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	msg := err.Error()
	switch {
	case errors.Is(err, entities.ErrRequestNotFound):
		msg = "request not found"
	case status >= http.StatusInternalServerError:
		msg = "internal error"
	}
	return c.Status(status).JSON(errorResponse(code, msg))
}

func classify(err error) (int, api.ErrorResponseErrorCode) {
	switch {
	case errors.Is(err, entities.ErrValidation):
		return http.StatusBadRequest, api.VALIDATION
	case errors.Is(err, entities.ErrInvalidSettings):
		return http.StatusBadRequest, api.INVALIDSETTINGS
	case errors.Is(err, entities.ErrRequestNotFound), errors.Is(err, entities.ErrSettingsNotFound):
		return http.StatusNotFound, api.NOTFOUND
	case errors.Is(err, entities.ErrInvalidTransition):
		return http.StatusConflict, api.INVALIDTRANSITION
	case errors.Is(err, entities.ErrMissingVariable):
		return http.StatusUnprocessableEntity, api.MISSINGVARIABLE
	}
	return http.StatusInternalServerError, api.INTERNAL
}

func errorResponse(code api.ErrorResponseErrorCode, msg string) api.ErrorResponse {
	return api.ErrorResponse{Error: struct {
		Code    api.ErrorResponseErrorCode `json:"code"`
		Message string                     `json:"message"`
	}{Code: code, Message: msg}}
}

// ErrorHandler renders errors that escape a handler, such as unparsable query
// parameters or unknown routes, in the API error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if !errors.As(err, &fe) {
		return writeError(c, err)
	}
	code := api.VALIDATION
	switch {
	case fe.Code == http.StatusNotFound:
		code = api.NOTFOUND
	case fe.Code >= http.StatusInternalServerError:
		code = api.INTERNAL
	}
	return c.Status(fe.Code).JSON(errorResponse(code, fe.Message))
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(http.StatusBadRequest).JSON(errorResponse(api.VALIDATION, "invalid body"))
}
