// Package operator provides the synchronous request/response bridge
// between the agent and a human operator. Channels are pluggable across
// transports; every implementation enforces a timeout and returns the
// NoResponse sentinel instead of blocking the orchestrator forever.
package operator

import (
	"context"
	"log/slog"

	"github.com/nugget/contreact/internal/config"
)

// NoResponse is returned by SendAndWait when the operator does not answer
// within the configured timeout. The orchestrator treats it as a valid,
// low-information response — never as an error.
const NoResponse = "[no response from operator within timeout]"

// Channel is a synchronous communication path to the operator.
type Channel interface {
	// SendAndWait delivers message to the operator, annotated with run
	// and cycle context, and blocks for the reply. On timeout it returns
	// NoResponse with a nil error. A non-nil error means the transport
	// itself failed.
	SendAndWait(ctx context.Context, message, runID string, cycleNumber int) (string, error)

	// Close releases transport resources.
	Close(ctx context.Context) error
}

// Select builds the configured channel. When the remote channel cannot be
// brought up the terminal channel is used instead — losing remote
// messaging should degrade the experiment's ergonomics, not abort it.
func Select(ctx context.Context, cfg *config.Config, logger *slog.Logger) Channel {
	timeout := cfg.OperatorTimeout()

	if cfg.Operator.Channel == "mqtt" {
		ch, err := NewMQTT(ctx, cfg.Operator.MQTT, timeout, logger)
		if err == nil {
			logger.Info("operator channel ready", "transport", "mqtt", "broker", cfg.Operator.MQTT.Broker)
			return ch
		}
		logger.Warn("mqtt operator channel unavailable, falling back to terminal", "error", err)
	}

	logger.Info("operator channel ready", "transport", "terminal")
	return NewTerminal(timeout)
}
