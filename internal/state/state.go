// Package state holds the agent's in-memory run state.
package state

import "github.com/nugget/contreact/internal/llm"

// AgentState is the complete state of an agent at a point in time. It is
// owned exclusively by the orchestrator while a cycle executes and is the
// unit of checkpointing between cycles.
//
// MessageHistory is append-only: messages are never reordered or mutated
// in place, and the history grows across cycles for the whole run.
// ReflectionHistory holds one terminal reflection per completed cycle, so
// len(ReflectionHistory) == CycleNumber-1 at the start of any cycle.
type AgentState struct {
	RunID             string        `json:"run_id"`
	CycleNumber       int           `json:"cycle_number"`
	Model             string        `json:"model"`
	MessageHistory    []llm.Message `json:"message_history"`
	ReflectionHistory []string      `json:"reflection_history"`
}

// New returns the initial state for cycle 1 of a run.
func New(runID, model string) *AgentState {
	return &AgentState{
		RunID:       runID,
		CycleNumber: 1,
		Model:       model,
	}
}

// AppendMessage appends a message to the history.
func (s *AgentState) AppendMessage(m llm.Message) {
	s.MessageHistory = append(s.MessageHistory, m)
}

// AppendReflection records the terminal reflection that ended the current
// cycle.
func (s *AgentState) AppendReflection(text string) {
	s.ReflectionHistory = append(s.ReflectionHistory, text)
}
