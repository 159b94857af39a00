package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the Ollama API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates an Ollama client for the given base URL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // Large models with tools need time
		},
	}
}

// Chat sends a chat completion request to Ollama.
//
// Error classification matters to callers: a *TransportError means the
// backend was unreachable or failed outright (fatal for a run), while a
// *ProtocolError means the backend answered but the payload could not be
// decoded — typically because the model emitted output that broke the
// backend's own tool-call template parsing. Protocol errors carry the raw
// body so the response interpreter can attempt text recovery.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any, options *Options) (*ChatResponse, error) {
	req := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Tools:    tools,
		Options:  options,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusInternalServerError {
		// A 500 with an error body is how Ollama reports that the model's
		// own output defeated its response parser. The raw error text
		// usually embeds the model's text, so surface it as recoverable.
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errBody) == nil && errBody.Error != "" {
			return nil, &ProtocolError{
				Raw: errBody.Error,
				Err: fmt.Errorf("backend rejected response: %s", truncate(errBody.Error, 200)),
			}
		}
		return nil, &TransportError{Err: fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(string(body), 200))}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Err: fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(string(body), 200))}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &ProtocolError{
			Raw: string(body),
			Err: fmt.Errorf("decode response: %w", err),
		}
	}

	return &chatResp, nil
}

// Ping checks if Ollama is reachable.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API error %d", resp.StatusCode)
	}

	return nil
}

// ListModels returns the model tags available on the backend.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

// VerifyModel confirms the named model exists on the backend. The error
// message includes the pull command so the operator can fix it directly.
func (c *Client) VerifyModel(ctx context.Context, model string) error {
	models, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("connect to ollama (is it running? try: ollama serve): %w", err)
	}

	for _, m := range models {
		if m == model {
			return nil
		}
	}

	return fmt.Errorf("model %q not found locally, pull it first: ollama pull %s", model, model)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
