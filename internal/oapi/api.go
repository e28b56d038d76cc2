// Package oapi holds the HTTP API types and route registration.
package oapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponseErrorCode enumerates API error codes.
type ErrorResponseErrorCode string

const (
	VALIDATION        ErrorResponseErrorCode = "VALIDATION"
	NOTFOUND          ErrorResponseErrorCode = "NOT_FOUND"
	INVALIDTRANSITION ErrorResponseErrorCode = "INVALID_TRANSITION"
	MISSINGVARIABLE   ErrorResponseErrorCode = "MISSING_VARIABLE"
	INVALIDSETTINGS   ErrorResponseErrorCode = "INVALID_SETTINGS"
	INTERNAL          ErrorResponseErrorCode = "INTERNAL"
)

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Error struct {
		Code    ErrorResponseErrorCode `json:"code"`
		Message string                 `json:"message"`
	} `json:"error"`
}

// StatusEntry defines model for StatusEntry.
type StatusEntry struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
	Actor     *string   `json:"actor,omitempty"`
}

// Request defines model for Request.
type Request struct {
	Id                  string        `json:"id"`
	Location            string        `json:"location"`
	Description         string        `json:"description"`
	Priority            string        `json:"priority"`
	Submitter           string        `json:"submitter"`
	AttachmentCount     int           `json:"attachment_count"`
	Assignee            *string       `json:"assignee,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	EstimatedCompletion *time.Time    `json:"estimated_completion,omitempty"`
	CurrentStatus       string        `json:"current_status"`
	Progress            int           `json:"progress"`
	NextStatuses        []string      `json:"next_statuses"`
	StatusHistory       []StatusEntry `json:"status_history"`
}

// RequestResponse wraps a single request.
type RequestResponse struct {
	Request Request `json:"request"`
}

// RequestListResponse wraps a request listing.
type RequestListResponse struct {
	Requests []Request `json:"requests"`
}

// DeliveryFailure defines model for DeliveryFailure.
type DeliveryFailure struct {
	EventId   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	FailedAt  time.Time `json:"failed_at"`
}

// DeliveryFailureListResponse wraps delivery failures of a request.
type DeliveryFailureListResponse struct {
	Failures []DeliveryFailure `json:"failures"`
}

// PostRequestsJSONRequestBody defines body for PostRequests.
type PostRequestsJSONRequestBody struct {
	Location        string  `json:"location"`
	Description     string  `json:"description"`
	IsAnonymous     bool    `json:"is_anonymous"`
	Name            *string `json:"name,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	AttachmentCount int     `json:"attachment_count"`
	Priority        *string `json:"priority,omitempty"`
}

// PostRequestsIdTransitionJSONRequestBody defines body for PostRequestsIdTransition.
type PostRequestsIdTransitionJSONRequestBody struct {
	Status string `json:"status"`
	Note   string `json:"note"`
	Actor  string `json:"actor"`
}

// PostRequestsIdCancelJSONRequestBody defines body for PostRequestsIdCancel.
type PostRequestsIdCancelJSONRequestBody struct {
	Note  string `json:"note"`
	Actor string `json:"actor"`
}

// PostRequestsIdAssignJSONRequestBody defines body for PostRequestsIdAssign.
type PostRequestsIdAssignJSONRequestBody struct {
	Assignee string `json:"assignee"`
	Actor    string `json:"actor"`
}

// GetRequestsParams defines parameters for GetRequests.
type GetRequestsParams struct {
	Status string `query:"status"`
	Limit  int    `query:"limit"`
}

// Condition defines model for Condition.
type Condition struct {
	Kind  string `json:"kind"`
	Value string `json:"value,omitempty"`
}

// PriorityRule defines model for PriorityRule.
type PriorityRule struct {
	Condition         Condition `json:"condition"`
	Priority          string    `json:"priority"`
	NotifyRoles       []string  `json:"notify_roles,omitempty"`
	EscalationMinutes int       `json:"escalation_minutes"`
}

// EscalationLevel defines model for EscalationLevel.
type EscalationLevel struct {
	ThresholdMinutes int      `json:"threshold_minutes"`
	NotifyUsers      []string `json:"notify_users,omitempty"`
	Actions          []string `json:"actions,omitempty"`
}

// Escalation defines model for Escalation.
type Escalation struct {
	Enabled       bool              `json:"enabled"`
	ApplyOffHours bool              `json:"apply_off_hours"`
	Levels        []EscalationLevel `json:"levels"`
}

// WorkingHours defines model for WorkingHours.
type WorkingHours struct {
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Days     []string `json:"days"`
	Timezone string   `json:"timezone"`
}

// Settings defines model for Settings.
type Settings struct {
	Version               int64             `json:"version"`
	UpdatedAt             time.Time         `json:"updated_at"`
	PrimaryEmail          string            `json:"primary_email"`
	CcEmails              []string          `json:"cc_emails"`
	EmailNotifications    bool              `json:"email_notifications"`
	WhatsappNotifications bool              `json:"whatsapp_notifications"`
	WhatsappNumber        string            `json:"whatsapp_number"`
	SmsNotifications      bool              `json:"sms_notifications"`
	NotificationFrequency string            `json:"notification_frequency"`
	Templates             map[string]string `json:"templates"`
	TemplateDefaults      map[string]string `json:"template_defaults,omitempty"`
	RoleContacts          map[string]string `json:"role_contacts,omitempty"`
	WorkingHours          WorkingHours      `json:"working_hours"`
	Escalation            Escalation        `json:"escalation"`
	PriorityRules         []PriorityRule    `json:"priority_rules"`
}

// PutSettingsJSONRequestBody defines body for PutSettings.
type PutSettingsJSONRequestBody = Settings

// SettingsResponse wraps the active settings.
type SettingsResponse struct {
	Settings Settings `json:"settings"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (POST /requests)
	PostRequests(c *fiber.Ctx) error
	// (GET /requests)
	GetRequests(c *fiber.Ctx, params GetRequestsParams) error
	// (GET /requests/{id})
	GetRequestsId(c *fiber.Ctx, id string) error
	// (GET /requests/{id}/failures)
	GetRequestsIdFailures(c *fiber.Ctx, id string) error
	// (POST /requests/{id}/transition)
	PostRequestsIdTransition(c *fiber.Ctx, id string) error
	// (POST /requests/{id}/cancel)
	PostRequestsIdCancel(c *fiber.Ctx, id string) error
	// (POST /requests/{id}/assign)
	PostRequestsIdAssign(c *fiber.Ctx, id string) error
	// (GET /settings)
	GetSettings(c *fiber.Ctx) error
	// (PUT /settings)
	PutSettings(c *fiber.Ctx) error
	// (POST /settings/reload)
	PostSettingsReload(c *fiber.Ctx) error
}

// ServerInterfaceWrapper converts fiber contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) getRequests(c *fiber.Ctx) error {
	var params GetRequestsParams
	if err := c.QueryParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid format for query parameters")
	}
	return w.Handler.GetRequests(c, params)
}

func (w *ServerInterfaceWrapper) withID(fn func(c *fiber.Ctx, id string) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return fn(c, c.Params("id"))
	}
}

// RegisterHandlers mounts every route of si under router.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	w := &ServerInterfaceWrapper{Handler: si}

	router.Post("/requests", si.PostRequests)
	router.Get("/requests", w.getRequests)
	router.Get("/requests/:id", w.withID(si.GetRequestsId))
	router.Get("/requests/:id/failures", w.withID(si.GetRequestsIdFailures))
	router.Post("/requests/:id/transition", w.withID(si.PostRequestsIdTransition))
	router.Post("/requests/:id/cancel", w.withID(si.PostRequestsIdCancel))
	router.Post("/requests/:id/assign", w.withID(si.PostRequestsIdAssign))

	router.Get("/settings", si.GetSettings)
	router.Put("/settings", si.PutSettings)
	router.Post("/settings/reload", si.PostSettingsReload)
}
