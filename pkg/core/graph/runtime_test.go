package graph

import (
	"context"
	"testing"

	"marketaoc/pkg/core/llm"
	"marketaoc/pkg/core/session"
)

// scriptedModel replays a fixed sequence of assistant messages, one per
// Invoke call, simulating a node that calls a tool once then answers.
type scriptedModel struct {
	replies []session.Message
	calls   int
}

func (m *scriptedModel) Invoke(ctx context.Context, msgs []session.Message, tools []llm.ToolSpec) (session.Message, error) {
	if m.calls >= len(m.replies) {
		return session.Message{Role: session.RoleAssistant, Content: `{"summary":"done","confidence":0.5}`}, nil
	}
	reply := m.replies[m.calls]
	m.calls++
	return reply, nil
}

func TestRuntime_IdempotentOnWellFormedArtifact(t *testing.T) {
	state := session.New(session.Request{Symbol: "000001"})
	state.SetReport(session.KindMacro, `{"summary":"already computed with plenty of detail to pass the length check, definitely over one hundred characters long","confidence":0.8}`)

	model := &scriptedModel{}
	spec := NewMacroAnalystSpec(model)
	rt := NewRuntime()

	if err := rt.Run(context.Background(), spec, state, noopDispatch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.calls != 0 {
		t.Fatalf("expected no model invocation on idempotent re-entry, got %d calls", model.calls)
	}
}

func TestRuntime_ToolCallThenArtifact(t *testing.T) {
	state := session.New(session.Request{Symbol: "000001", TradeDate: "2026-07-31"})
	model := &scriptedModel{
		replies: []session.Message{
			{Role: session.RoleAssistant, ToolCalls: []session.ToolCall{{ID: "1", Name: "fetch_macro_data", Arguments: "{}"}}},
			{Role: session.RoleAssistant, Content: `{"summary":"GDP steady","trend":"stable","confidence":0.7}`},
		},
	}
	spec := NewMacroAnalystSpec(model)
	rt := NewRuntime()

	dispatched := 0
	dispatch := func(ctx context.Context, call session.ToolCall) (string, error) {
		dispatched++
		return `{"gdp":5.0}`, nil
	}

	if err := rt.Run(context.Background(), spec, state, dispatch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dispatched != 1 {
		t.Fatalf("expected exactly one tool dispatch, got %d", dispatched)
	}
	report, ok := state.GetReport(session.KindMacro)
	if !ok {
		t.Fatal("expected a committed macro report")
	}
	if report == "" {
		t.Fatal("report should not be empty")
	}
}

func TestRuntime_BudgetExhaustionEmitsFallback(t *testing.T) {
	state := session.New(session.Request{Symbol: "000001"})
	// Always asks for another tool call; budget of 1 must force a fallback.
	model := &scriptedModel{}
	everAskForTool := &alwaysToolModel{}
	spec := NewMacroAnalystSpec(everAskForTool)
	spec.MaxToolCalls = 1
	rt := NewRuntime()

	dispatch := func(ctx context.Context, call session.ToolCall) (string, error) {
		return `{}`, nil
	}

	if err := rt.Run(context.Background(), spec, state, dispatch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report, _ := state.GetReport(session.KindMacro)
	if report != spec.Fallback(state) {
		t.Fatalf("expected fallback artifact after budget exhaustion, got %q", report)
	}
	_ = model
}

// alwaysToolModel never stops requesting tool calls, exercising the budget
// enforcement path.
type alwaysToolModel struct{}

func (alwaysToolModel) Invoke(ctx context.Context, msgs []session.Message, tools []llm.ToolSpec) (session.Message, error) {
	return session.Message{
		Role:      session.RoleAssistant,
		ToolCalls: []session.ToolCall{{ID: "x", Name: "fetch_macro_data", Arguments: "{}"}},
	}, nil
}

func noopDispatch(ctx context.Context, call session.ToolCall) (string, error) {
	return "", nil
}
