// Package graph implements the Analyst Node Runtime: the typed
// node-execution contract every analyst shares. Each node follows the same
// "build messages, invoke model, maybe dispatch tools, re-invoke" loop;
// Runtime drives that loop for an arbitrary AnalystSpec.
package graph

import (
	"context"
	"fmt"
	"time"

	"marketaoc/pkg/core/artifact"
	"marketaoc/pkg/core/llm"
	"marketaoc/pkg/core/session"
)

// minWellFormedLength is the idempotency threshold: an existing artifact
// at least this long is treated as already well-formed.
const minWellFormedLength = 100

// ToolDispatcher invokes one tool call and returns its textual result. The
// Scheduler supplies this, backed by its toolkit.Registry; the Runtime
// never talks to the registry directly, keeping tool dispatch under the
// Scheduler's control.
type ToolDispatcher func(ctx context.Context, call session.ToolCall) (string, error)

// AnalystSpec describes one analyst node: its system framing, the tools it
// may call, its budget, and the fallback it must emit when that budget runs
// out or its required inputs are missing.
type AnalystSpec struct {
	Kind         session.AnalystKind
	Model        llm.ChatModel
	Tools        []llm.ToolSpec
	MaxToolCalls int

	// SystemPrompt is the node's fixed framing message.
	SystemPrompt string

	// BuildUserPrompt renders the node's initial user-turn content from the
	// current (committed) state — e.g. the Policy artifact for Sector, or
	// probe status for any node deciding whether data is even reachable.
	BuildUserPrompt func(state *session.AgentState) (string, error)

	// Fallback builds the neutral, low-confidence artifact (confidence
	// <= 0.3) emitted when the tool-call budget is exhausted or required
	// inputs are missing.
	Fallback func(state *session.AgentState) string
}

// Runtime executes analyst nodes under the shared node contract.
type Runtime struct{}

// NewRuntime constructs a Runtime. It carries no state; node-local counters
// live on the AgentState itself so a node can be re-entered safely.
func NewRuntime() *Runtime { return &Runtime{} }

// Run executes one analyst node against state, dispatching tool calls
// through dispatch until the node emits a final textual artifact or its
// budget is exhausted.
//
// Idempotency: if state already carries a well-formed artifact for
// this Kind, Run returns immediately without invoking the model at all.
func (rt *Runtime) Run(ctx context.Context, spec AnalystSpec, state *session.AgentState, dispatch ToolDispatcher) error {
	if existing, ok := state.GetReport(spec.Kind); ok && isWellFormed(existing) {
		return nil
	}

	userContent, err := spec.BuildUserPrompt(state)
	if err != nil {
		state.SetReport(spec.Kind, spec.Fallback(state))
		return fmt.Errorf("graph: %s: building prompt: %w", spec.Kind, err)
	}

	msgs := []session.Message{
		{Role: session.RoleSystem, Content: spec.SystemPrompt, Timestamp: timeNow()},
		{Role: session.RoleUser, Content: userContent, Timestamp: timeNow()},
	}

	maxCalls := spec.MaxToolCalls
	if maxCalls <= 0 {
		maxCalls = 3
	}

	for {
		if err := ctx.Err(); err != nil {
			state.AppendMessages(msgs...)
			return fmt.Errorf("graph: %s: %w", spec.Kind, err)
		}

		assistant, err := spec.Model.Invoke(ctx, msgs, spec.Tools)
		if err != nil {
			state.AppendMessages(msgs...)
			state.SetReport(spec.Kind, spec.Fallback(state))
			return fmt.Errorf("graph: %s: model invoke failed, emitted fallback: %w", spec.Kind, err)
		}
		msgs = append(msgs, assistant)

		if len(assistant.ToolCalls) == 0 {
			state.AppendMessages(msgs...)
			state.SetReport(spec.Kind, extractArtifact(assistant.Content))
			return nil
		}

		count := state.IncrementToolCalls(spec.Kind)
		if count > maxCalls {
			state.AppendMessages(msgs...)
			state.SetReport(spec.Kind, spec.Fallback(state))
			return nil
		}

		for _, call := range assistant.ToolCalls {
			result, err := dispatch(ctx, call)
			if err != nil {
				result = fmt.Sprintf(`{"error": %q}`, err.Error())
			}
			msgs = append(msgs, session.Message{
				Role:       session.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
				Timestamp:  timeNow(),
			})
		}
	}
}

// extractArtifact applies the extraction algorithm, storing raw content
// verbatim when no JSON object can be recovered.
func extractArtifact(content string) string {
	res := artifact.Extract(content)
	if res.Parsed {
		return res.JSON
	}
	return res.Raw
}

func isWellFormed(existing string) bool {
	if len(existing) >= minWellFormedLength {
		return true
	}
	return artifact.Extract(existing).Parsed
}

func timeNow() time.Time { return time.Now() }
