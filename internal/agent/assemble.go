package agent

import (
	"github.com/nugget/contreact/internal/llm"
	"github.com/nugget/contreact/internal/prompts"
	"github.com/nugget/contreact/internal/state"
)

// Assemble constructs the outbound message list for one LLM invocation:
// the system message (preamble + prior reflections + advisory, if any)
// followed by the full message history. It is a pure function — no state
// is read beyond its arguments and nothing is mutated; the advisory is
// folded into the system message, never appended to history. Tool schemas
// travel separately in the chat request, not as messages.
func Assemble(st *state.AgentState, preamble, advisory string) []llm.Message {
	messages := make([]llm.Message, 0, len(st.MessageHistory)+1)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: prompts.BuildSystem(preamble, st.ReflectionHistory, advisory),
	})
	messages = append(messages, st.MessageHistory...)
	return messages
}
