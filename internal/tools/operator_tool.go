package tools

import (
	"context"

	"github.com/nugget/contreact/internal/operator"
)

// cycleContextKey carries run and cycle identity to tool handlers that
// need it. The orchestrator attaches it per dispatch via [WithCycle].
type cycleContextKey struct{}

type cycleContext struct {
	runID       string
	cycleNumber int
}

// WithCycle annotates ctx with the current run and cycle so handlers can
// include experiment context in operator-facing output.
func WithCycle(ctx context.Context, runID string, cycleNumber int) context.Context {
	return context.WithValue(ctx, cycleContextKey{}, cycleContext{runID: runID, cycleNumber: cycleNumber})
}

func cycleFrom(ctx context.Context) cycleContext {
	if cc, ok := ctx.Value(cycleContextKey{}).(cycleContext); ok {
		return cc
	}
	return cycleContext{}
}

// RegisterOperatorTool exposes the synchronous operator channel as the
// send_message_to_operator tool. A timed-out wait is a valid result (the
// NoResponse sentinel), not an error.
func RegisterOperatorTool(r *Registry, channel operator.Channel) {
	r.Register(&Tool{
		Name:        "send_message_to_operator",
		Description: "Send a message to the human operator and wait for their response. Blocks until the operator replies or the wait times out.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{
					"type":        "string",
					"description": "The message to display to the operator",
				},
			},
			"required": []string{"message"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			message := stringArg(args, "message")
			if message == "" {
				return "Error: 'message' argument is required", nil
			}
			cc := cycleFrom(ctx)
			return channel.SendAndWait(ctx, message, cc.runID, cc.cycleNumber)
		},
	})
}
