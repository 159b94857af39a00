// Package llm provides the Ollama client used for chat completions and
// embedding generation.
package llm

import "encoding/json"

// Message represents a chat message in Ollama wire format.
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"`
	Function ToolFunction `json:"function"`
}

// ToolFunction names the requested tool and carries its argument block.
// Arguments stays raw JSON at this layer: models frequently emit payloads
// that are not valid objects, and decoding is deferred to the response
// interpreter so a malformed block never fails the whole response decode.
type ToolFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Options are the generation parameters forwarded to Ollama verbatim.
// Zero values are omitted from the wire request so the backend's own
// defaults apply.
type Options struct {
	Temperature   float64 `json:"temperature,omitempty" yaml:"temperature"`
	TopP          float64 `json:"top_p,omitempty" yaml:"top_p"`
	Seed          int     `json:"seed,omitempty" yaml:"seed"`
	NumCtx        int     `json:"num_ctx,omitempty" yaml:"num_ctx"`
	NumPredict    int     `json:"num_predict,omitempty" yaml:"num_predict"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty" yaml:"repeat_penalty"`
}

// ChatRequest is the request format for the Ollama chat API.
type ChatRequest struct {
	Model    string           `json:"model"`
	Messages []Message        `json:"messages"`
	Stream   bool             `json:"stream"`
	Tools    []map[string]any `json:"tools,omitempty"`
	Options  *Options         `json:"options,omitempty"`
}

// ChatResponse is the response from the Ollama chat API.
type ChatResponse struct {
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Message   Message `json:"message"`
	Done      bool    `json:"done"`

	// Usage stats (when done=true)
	TotalDuration   int64 `json:"total_duration,omitempty"`
	LoadDuration    int64 `json:"load_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
	EvalDuration    int64 `json:"eval_duration,omitempty"`
}

// TransportError is a connection-level or backend failure unrelated to the
// model's payload: connection refused, timeouts, unknown model, backend
// crash. These are fatal for a run — retrying would break seed-based
// reproducibility.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "ollama transport: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is raised when the backend produced a response the client
// could not decode, or when the backend itself rejected the model's output
// as unparsable. Raw preserves the offending payload for best-effort text
// recovery and post-hoc analysis.
type ProtocolError struct {
	Raw string
	Err error
}

func (e *ProtocolError) Error() string { return "ollama protocol: " + e.Err.Error() }

func (e *ProtocolError) Unwrap() error { return e.Err }
