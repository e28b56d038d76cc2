package channel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"facility-maintenance/config"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type gatewayMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Gateway posts messages to an HTTP messaging gateway (WhatsApp or SMS).
type Gateway struct {
	log     *zap.SugaredLogger
	url     string
	token   string
	timeout time.Duration
}

// NewGateway returns an HTTP gateway sender, or a Log sender when no URL is set.
func NewGateway(log *zap.SugaredLogger, name string, cfg config.GatewayConfig) Sender {
	if cfg.URL == "" {
		return NewLog(log, name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{log: log.Named("channel." + name), url: cfg.URL, token: cfg.Token, timeout: timeout}
}

// Send posts {to, message} as JSON. Any non-2xx response is an error.
func (g *Gateway) Send(ctx context.Context, destination, message string) error {
	timeout := g.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return context.DeadlineExceeded
	}

	agent := fiber.Post(g.url).JSON(gatewayMessage{To: destination, Message: message}).Timeout(timeout)
	if g.token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+g.token)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("gateway request: %w", errors.Join(errs...))
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("gateway responded %d: %s", code, truncate(string(body), 200))
	}
	g.log.Debugw("gateway message sent", "to", destination, "status", code)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
