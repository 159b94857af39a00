package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nugget/contreact/internal/llm"
)

// OutcomeKind discriminates the two terminal shapes of a model response.
type OutcomeKind int

const (
	// KindToolCalls means the model requested one or more tool
	// invocations and the cycle's tool-use loop continues.
	KindToolCalls OutcomeKind = iota

	// KindReflection means the model produced the cycle's terminal
	// reflection.
	KindReflection
)

// ToolRequest is one decoded tool invocation request. Warning is
// non-empty when the argument block only decoded after sanitization, or
// not at all (Args is then empty rather than the dispatch failing).
type ToolRequest struct {
	ID      string
	Name    string
	Args    map[string]any
	Raw     json.RawMessage
	Warning string
}

// Outcome is the interpreted result of one model invocation. Recovery
// from malformed output is a first-class branch here, not an exception
// path: a response the backend itself rejected still produces a usable
// reflection Outcome, with Recovered set and the raw payload preserved.
type Outcome struct {
	Kind       OutcomeKind
	ToolCalls  []ToolRequest
	Reflection string // reasoning markup stripped, for context re-use
	RawContent string // the assistant text exactly as produced
	Recovered  bool
	Warning    string
}

// Interpret classifies a model response as tool calls or a terminal
// reflection, applying the recovery policy for malformed output.
//
// A *llm.ProtocolError from the invocation is recovered locally: readable
// text is extracted from the raw payload best-effort and treated as a
// reflection. Any other invocation error is returned unchanged — those
// are transport failures and fatal for the run.
func Interpret(resp *llm.ChatResponse, callErr error) (Outcome, error) {
	if callErr != nil {
		var protoErr *llm.ProtocolError
		if errors.As(callErr, &protoErr) {
			text, ok := extractReadableText(protoErr.Raw)
			warning := "backend rejected response as unparsable; recovered readable text"
			if !ok {
				warning = "backend rejected response as unparsable; no readable text recovered"
			}
			return Outcome{
				Kind:       KindReflection,
				Reflection: StripReasoning(text),
				RawContent: protoErr.Raw,
				Recovered:  true,
				Warning:    warning,
			}, nil
		}
		return Outcome{}, callErr
	}

	msg := resp.Message

	if len(msg.ToolCalls) > 0 {
		calls := make([]ToolRequest, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			args, warning := decodeArguments(tc.Function.Arguments)
			calls = append(calls, ToolRequest{
				ID:      tc.ID,
				Name:    tc.Function.Name,
				Args:    args,
				Raw:     tc.Function.Arguments,
				Warning: warning,
			})
		}
		return Outcome{Kind: KindToolCalls, ToolCalls: calls, RawContent: msg.Content}, nil
	}

	return Outcome{
		Kind:       KindReflection,
		Reflection: StripReasoning(msg.Content),
		RawContent: msg.Content,
	}, nil
}

// decodeArguments decodes a tool call's argument block. Malformed blocks
// get exactly one sanitization pass (control characters stripped) and one
// retry; if that also fails the tool is dispatched with empty arguments
// so the loop continues, and the warning explains what happened.
func decodeArguments(raw json.RawMessage) (map[string]any, string) {
	if len(raw) == 0 {
		return map[string]any{}, ""
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err == nil {
		if args == nil {
			args = map[string]any{}
		}
		return args, ""
	}

	sanitized := stripControlChars(string(raw))
	if err := json.Unmarshal([]byte(sanitized), &args); err == nil {
		if args == nil {
			args = map[string]any{}
		}
		return args, "tool arguments decoded only after control-character sanitization"
	}

	return map[string]any{}, fmt.Sprintf("tool arguments undecodable, dispatching with empty arguments (raw: %s)", clip(string(raw), 200))
}

// stripControlChars removes ASCII control characters except tab, which
// models sometimes emit unescaped inside string values.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// StripReasoning removes internal reasoning markup (<think>...</think>
// blocks) from reflection text so it can be re-used as context in later
// cycles. The unstripped original is preserved in the LLM_INVOCATION log
// record, never here.
func StripReasoning(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			// Unclosed block: everything after the tag is reasoning.
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// contentFieldRe matches a JSON "content" string value inside an
// arbitrary error payload, tolerating escaped characters.
var contentFieldRe = regexp.MustCompile(`"content"\s*:\s*("(?:[^"\\]|\\.)*")`)

// extractReadableText pulls human-readable text out of a raw error
// payload. It prefers an embedded JSON content field, then falls back to
// de-noising the payload itself. ok is false when nothing readable
// survived — the caller then logs a warning and proceeds with the empty
// placeholder.
func extractReadableText(raw string) (text string, ok bool) {
	if m := contentFieldRe.FindStringSubmatch(raw); m != nil {
		if unquoted, err := strconv.Unquote(m[1]); err == nil && strings.TrimSpace(unquoted) != "" {
			return strings.TrimSpace(unquoted), true
		}
	}

	cleaned := strings.TrimSpace(stripControlChars(raw))
	cleaned = strings.Trim(cleaned, "{}[]\"")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", false
	}
	return cleaned, true
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
