// Package channel implements the outbound notification transports.
package channel

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers one rendered message to one destination.
type Sender interface {
	Send(ctx context.Context, destination, message string) error
}

// Log writes messages to the logger instead of delivering them. It backs any
// channel left unconfigured.
type Log struct {
	log *zap.SugaredLogger
}

// NewLog creates a Log sender for the named channel.
func NewLog(log *zap.SugaredLogger, name string) *Log {
	return &Log{log: log.Named("channel." + name)}
}

// Send logs the message.
func (l *Log) Send(_ context.Context, destination, message string) error {
	l.log.Infow("notification", "to", destination, "message", message)
	return nil
}
