package handlers_fiber

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"facility-maintenance/internal/entities"
	api "facility-maintenance/internal/oapi"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   api.ErrorResponseErrorCode
		msg    string
	}{
		{"validation", fmt.Errorf("%w: Location is required", entities.ErrValidation), http.StatusBadRequest, api.VALIDATION, "validation failed: Location is required"},
		{"not_found", entities.ErrRequestNotFound, http.StatusNotFound, api.NOTFOUND, "request not found"},
		{"transition", fmt.Errorf("%w: submitted -> completed", entities.ErrInvalidTransition), http.StatusConflict, api.INVALIDTRANSITION, ""},
		{"missing_variable", fmt.Errorf("%w: assignee", entities.ErrMissingVariable), http.StatusUnprocessableEntity, api.MISSINGVARIABLE, ""},
		{"settings", fmt.Errorf("%w: bad", entities.ErrInvalidSettings), http.StatusBadRequest, api.INVALIDSETTINGS, ""},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, api.INTERNAL, "internal error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return writeError(c, tt.err)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tt.status, resp.StatusCode)

			var body api.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			require.Equal(t, tt.code, body.Error.Code)
			if tt.msg != "" {
				require.Equal(t, tt.msg, body.Error.Message)
			}
		})
	}
}
