package handlers_fiber

import (
	"net/http"

	"facility-maintenance/internal/entities"
	"facility-maintenance/internal/mapper"
	api "facility-maintenance/internal/oapi"

	"github.com/gofiber/fiber/v2"
)

// PostRequests submits a new maintenance request.
func (h *Handler) PostRequests(c *fiber.Ctx) error {
	var body api.PostRequestsJSONRequestBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody(c)
	}
	req, err := h.uc.Submit(c.Context(), mapper.FromOAPISubmit(body))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(api.RequestResponse{Request: mapper.ToOAPIRequest(*req)})
}

// GetRequests lists requests, optionally filtered by status.
func (h *Handler) GetRequests(c *fiber.Ctx, params api.GetRequestsParams) error {
	filter := entities.RequestFilter{Limit: params.Limit}
	if params.Status != "" {
		st := entities.Status(params.Status)
		filter.Status = &st
	}
	reqs, err := h.uc.Requests(c.Context(), filter)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(api.RequestListResponse{Requests: mapper.ToOAPIRequests(reqs)})
}

// GetRequestsId returns one request with its timeline.
func (h *Handler) GetRequestsId(c *fiber.Ctx, id string) error {
	req, err := h.uc.Request(c.Context(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(api.RequestResponse{Request: mapper.ToOAPIRequest(*req)})
}

// GetRequestsIdFailures lists undelivered notifications of a request.
func (h *Handler) GetRequestsIdFailures(c *fiber.Ctx, id string) error {
	fs, err := h.uc.DeliveryFailures(c.Context(), id)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(api.DeliveryFailureListResponse{Failures: mapper.ToOAPIFailures(fs)})
}

// PostRequestsIdTransition moves a request to the next status.
func (h *Handler) PostRequestsIdTransition(c *fiber.Ctx, id string) error {
	var body api.PostRequestsIdTransitionJSONRequestBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody(c)
	}
	req, err := h.uc.Transition(c.Context(), id, entities.Status(body.Status), body.Note, body.Actor)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(api.RequestResponse{Request: mapper.ToOAPIRequest(*req)})
}

// PostRequestsIdCancel cancels an open request.
func (h *Handler) PostRequestsIdCancel(c *fiber.Ctx, id string) error {
	var body api.PostRequestsIdCancelJSONRequestBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return invalidBody(c)
		}
	}
	req, err := h.uc.Cancel(c.Context(), id, body.Note, body.Actor)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(api.RequestResponse{Request: mapper.ToOAPIRequest(*req)})
}

// PostRequestsIdAssign sets the assignee of an open request.
func (h *Handler) PostRequestsIdAssign(c *fiber.Ctx, id string) error {
	var body api.PostRequestsIdAssignJSONRequestBody
	if err := c.BodyParser(&body); err != nil {
		return invalidBody(c)
	}
	req, err := h.uc.Assign(c.Context(), id, body.Assignee, body.Actor)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(api.RequestResponse{Request: mapper.ToOAPIRequest(*req)})
}
