// Package agent implements the cycle orchestration core: the state
// machine that drives an autonomous agent through repeated
// think-act-reflect cycles against a local LLM backend.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nugget/contreact/internal/checkpoint"
	"github.com/nugget/contreact/internal/config"
	"github.com/nugget/contreact/internal/diversity"
	"github.com/nugget/contreact/internal/llm"
	"github.com/nugget/contreact/internal/prompts"
	"github.com/nugget/contreact/internal/runlog"
	"github.com/nugget/contreact/internal/state"
	"github.com/nugget/contreact/internal/tools"
)

// ChatClient is the model invocation contract the orchestrator consumes.
// *llm.Client satisfies it; tests substitute scripted fakes.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []llm.Message, tools []map[string]any, options *llm.Options) (*llm.ChatResponse, error)
}

// Embedder converts reflection text to a fixed-dimension vector for the
// similarity monitor. *llm.Embedder satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Orchestrator owns the AgentState for the duration of a run and
// sequences every cycle through the state machine:
//
//	LOAD_STATE → ASSEMBLE_PROMPT → INVOKE_LLM → PARSE_RESPONSE
//	    → DISPATCH_TOOL (loop back to ASSEMBLE_PROMPT)
//	    → FINALIZE_CYCLE → TERMINATE_OR_CONTINUE
//
// Execution is strictly sequential: one cycle, one tool iteration, and
// one outstanding model invocation at a time.
type Orchestrator struct {
	cfg         *config.Config
	chat        ChatClient
	embedder    Embedder // nil disables the similarity monitor
	registry    *tools.Registry
	eventLog    *runlog.Logger
	checkpoints *checkpoint.Store // nil disables resumable snapshots
	monitor     *diversity.Monitor
	logger      *slog.Logger
	preamble    string

	// pendingAdvisory is computed at the end of cycle k and consumed by
	// every prompt assembly of cycle k+1, then discarded. It is never
	// applied retroactively.
	pendingAdvisory string
}

// New creates an orchestrator. embedder and checkpoints may be nil, which
// disables diversity feedback and resume support respectively.
func New(cfg *config.Config, chat ChatClient, embedder Embedder, registry *tools.Registry, eventLog *runlog.Logger, checkpoints *checkpoint.Store, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		chat:        chat,
		embedder:    embedder,
		registry:    registry,
		eventLog:    eventLog,
		checkpoints: checkpoints,
		monitor:     diversity.NewMonitor(),
		logger:      logger,
		preamble:    prompts.System,
	}
}

// Run executes the experiment from the first pending cycle through the
// configured cycle count. With resume set, the newest checkpoint for the
// run is restored and execution continues after it. The returned state
// reflects whatever completed, even when err is non-nil.
func (o *Orchestrator) Run(ctx context.Context, resume bool) (*state.AgentState, error) {
	st, err := o.loadState(ctx, resume)
	if err != nil {
		return nil, err
	}

	if st.CycleNumber > o.cfg.CycleCount {
		o.logger.Info("run already complete", "run_id", st.RunID, "cycles", o.cfg.CycleCount)
		return st, nil
	}

	o.logger.Info("starting experiment",
		"run_id", st.RunID,
		"model", st.Model,
		"cycle_count", o.cfg.CycleCount,
		"first_cycle", st.CycleNumber,
	)

	for ; st.CycleNumber <= o.cfg.CycleCount; st.CycleNumber++ {
		if err := o.runCycle(ctx, st); err != nil {
			return st, err
		}

		// Cooperative cancellation point: between cycles is the only
		// place a run can stop without risking inconsistent history.
		if err := ctx.Err(); err != nil {
			return st, err
		}
	}
	st.CycleNumber = o.cfg.CycleCount

	o.logger.Info("experiment completed",
		"run_id", st.RunID,
		"cycles", o.cfg.CycleCount,
		"log_file", o.eventLog.FilePath(),
	)
	return st, nil
}

// loadState reconstructs or initializes the AgentState (LOAD_STATE for
// the run's first active cycle; subsequent cycles reuse the same state
// value, which is what makes history append-only across cycles).
func (o *Orchestrator) loadState(ctx context.Context, resume bool) (*state.AgentState, error) {
	if resume && o.checkpoints != nil {
		st, err := o.checkpoints.Latest(o.cfg.RunID)
		if err != nil {
			return nil, fmt.Errorf("restore checkpoint: %w", err)
		}
		if st != nil {
			st.CycleNumber++ // the snapshot's cycle already finalized
			o.rebuildMonitor(ctx, st)
			o.logger.Info("resumed from checkpoint",
				"run_id", st.RunID,
				"next_cycle", st.CycleNumber,
				"reflections", len(st.ReflectionHistory),
			)
			return st, nil
		}
	}
	return state.New(o.cfg.RunID, o.cfg.Model), nil
}

// rebuildMonitor re-embeds the restored reflection history so the
// similarity monitor sees the same past a fresh run would have.
func (o *Orchestrator) rebuildMonitor(ctx context.Context, st *state.AgentState) {
	if o.embedder == nil {
		return
	}
	for i, reflection := range st.ReflectionHistory {
		emb, err := o.embedder.Embed(ctx, reflection)
		if err != nil {
			o.logger.Warn("re-embedding restored reflection failed", "cycle", i+1, "error", err)
			continue
		}
		o.monitor.Check(emb)
	}
}

// runCycle executes one full cycle: the tool-use sub-loop until a
// terminal reflection, then finalization (diversity check, metrics,
// CYCLE_END, checkpoint).
func (o *Orchestrator) runCycle(ctx context.Context, st *state.AgentState) error {
	cycle := st.CycleNumber
	advisory := o.pendingAdvisory
	o.pendingAdvisory = ""

	if err := o.eventLog.Log(st.RunID, cycle, runlog.EventCycleStart, nil); err != nil {
		return fmt.Errorf("log cycle start: %w", err)
	}
	o.logger.Info("cycle starting", "run_id", st.RunID, "cycle", cycle)

	reflection, toolCalls, warning, err := o.executeCycle(ctx, st, advisory)
	if err != nil {
		return err
	}

	// FINALIZE_CYCLE
	st.AppendReflection(reflection)

	diversityAdvisory, maxSimilarity := o.checkDiversity(ctx, reflection)
	o.pendingAdvisory = diversityAdvisory

	payload := map[string]any{
		"reflection": reflection,
		"metrics": map[string]any{
			"tool_calls":       toolCalls,
			"messages":         len(st.MessageHistory),
			"reflection_chars": len(reflection),
			"history_chars":    historyChars(st),
			"max_similarity":   maxSimilarity,
		},
	}
	if diversityAdvisory != "" {
		payload["diversity_advisory"] = diversityAdvisory
	}
	if warning != "" {
		payload["warning"] = warning
	}
	if err := o.eventLog.Log(st.RunID, cycle, runlog.EventCycleEnd, payload); err != nil {
		return fmt.Errorf("log cycle end: %w", err)
	}

	if o.checkpoints != nil {
		if err := o.checkpoints.Save(st); err != nil {
			return fmt.Errorf("checkpoint cycle %d: %w", cycle, err)
		}
	}

	o.logger.Info("cycle finished",
		"run_id", st.RunID,
		"cycle", cycle,
		"tool_calls", toolCalls,
		"reflection_chars", len(reflection),
		"max_similarity", maxSimilarity,
	)
	return nil
}

// executeCycle runs the inner tool-use loop (ASSEMBLE_PROMPT →
// INVOKE_LLM → PARSE_RESPONSE → DISPATCH_TOOL) until the model produces a
// terminal reflection or the iteration cap forces one.
func (o *Orchestrator) executeCycle(ctx context.Context, st *state.AgentState, advisory string) (reflection string, toolCalls int, warning string, err error) {
	cycle := st.CycleNumber
	definitions := o.registry.Definitions()

	for iteration := 1; ; iteration++ {
		// ASSEMBLE_PROMPT
		messages := Assemble(st, o.preamble, advisory)

		// INVOKE_LLM
		resp, callErr := o.chat.Chat(ctx, st.Model, messages, definitions, &o.cfg.Options)

		payload := map[string]any{
			"prompt_messages": messages,
			"model_options":   o.cfg.Options,
		}
		if resp != nil {
			payload["response_message"] = resp.Message
		}
		if callErr != nil {
			payload["response_error"] = callErr.Error()
		}

		// PARSE_RESPONSE
		outcome, fatalErr := Interpret(resp, callErr)
		if fatalErr != nil {
			_ = o.eventLog.Log(st.RunID, cycle, runlog.EventLLMInvocation, payload)
			o.logger.Error("model invocation failed, terminating run", "cycle", cycle, "error", fatalErr)
			return "", toolCalls, "", fmt.Errorf("invoke model (cycle %d): %w", cycle, fatalErr)
		}

		if outcome.Recovered {
			// Preserve the unparsable payload for post-hoc analysis.
			payload["raw_payload"] = outcome.RawContent
			payload["warning"] = outcome.Warning
			o.logger.Warn("recovered malformed model response", "cycle", cycle, "detail", outcome.Warning)
			warning = outcome.Warning
		}
		if err := o.eventLog.Log(st.RunID, cycle, runlog.EventLLMInvocation, payload); err != nil {
			return "", toolCalls, "", fmt.Errorf("log llm invocation: %w", err)
		}

		// The assistant's message joins history exactly as produced;
		// stripping only applies to the reflection copy re-used later.
		if resp != nil {
			st.AppendMessage(resp.Message)
		} else {
			st.AppendMessage(llm.Message{Role: "assistant", Content: outcome.Reflection})
		}

		if outcome.Kind == KindReflection {
			return outcome.Reflection, toolCalls, warning, nil
		}

		// DISPATCH_TOOL
		for _, call := range outcome.ToolCalls {
			result := o.dispatchTool(ctx, st, call)
			st.AppendMessage(llm.Message{Role: "tool", Content: result, ToolCallID: call.ID})
			toolCalls++
		}

		if iteration >= o.cfg.MaxToolIterations {
			warning = fmt.Sprintf("tool iteration cap (%d) reached, forcing cycle finalization", o.cfg.MaxToolIterations)
			o.logger.Warn("tool iteration cap reached", "cycle", cycle, "cap", o.cfg.MaxToolIterations)
			return StripReasoning(outcome.RawContent), toolCalls, warning, nil
		}
	}
}

// dispatchTool executes one tool request and emits its TOOL_CALL record.
// Tool failures come back as text for the model, never as errors.
func (o *Orchestrator) dispatchTool(ctx context.Context, st *state.AgentState, call ToolRequest) string {
	toolCtx := tools.WithCycle(ctx, st.RunID, st.CycleNumber)
	result := o.registry.Dispatch(toolCtx, call.Name, call.Args)

	payload := map[string]any{
		"tool_name":  call.Name,
		"parameters": call.Args,
		"output":     result,
	}
	if call.Warning != "" {
		payload["warning"] = call.Warning
		payload["raw_arguments"] = string(call.Raw)
		o.logger.Warn("malformed tool arguments", "tool", call.Name, "detail", call.Warning)
	}
	if err := o.eventLog.Log(st.RunID, st.CycleNumber, runlog.EventToolCall, payload); err != nil {
		o.logger.Error("logging tool call failed", "tool", call.Name, "error", err)
	}

	return result
}

// checkDiversity embeds the reflection and asks the monitor for advisory
// feedback. Embedding failures degrade to "no feedback" — the similarity
// monitor is advisory, not load-bearing.
func (o *Orchestrator) checkDiversity(ctx context.Context, reflection string) (advisory string, maxSimilarity float64) {
	if o.embedder == nil {
		return "", 0
	}
	emb, err := o.embedder.Embed(ctx, reflection)
	if err != nil {
		o.logger.Warn("embedding reflection failed, skipping diversity check", "error", err)
		return "", 0
	}
	return o.monitor.Check(emb)
}

func historyChars(st *state.AgentState) int {
	total := 0
	for _, m := range st.MessageHistory {
		total += len(m.Content)
	}
	return total
}
