package llm

import (
	"context"
	"time"

	"marketaoc/pkg/core/session"
)

// MockChatModel provides deterministic responses for tests and the demo
// mode: a fixed reply plus simulated "thinking" latency.
type MockChatModel struct {
	// Reply is returned verbatim as assistant content when
	// AlwaysToolCallName is empty.
	Reply string
	// AlwaysToolCallName, when set, makes Invoke always emit a tool call
	// with that name regardless of history: a model that never stops
	// calling tools, for exercising budget enforcement.
	AlwaysToolCallName string
	Latency            time.Duration
}

var _ ChatModel = (*MockChatModel)(nil)

func (m *MockChatModel) Invoke(ctx context.Context, messages []session.Message, tools []ToolSpec) (session.Message, error) {
	latency := m.Latency
	if latency == 0 {
		latency = 10 * time.Millisecond
	}
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return session.Message{}, ctx.Err()
	}

	if m.AlwaysToolCallName != "" {
		return session.Message{
			Role:      session.RoleAssistant,
			Timestamp: time.Now(),
			ToolCalls: []session.ToolCall{{ID: m.AlwaysToolCallName, Name: m.AlwaysToolCallName, Arguments: "{}"}},
		}, nil
	}

	return session.Message{Role: session.RoleAssistant, Content: m.Reply, Timestamp: time.Now()}, nil
}
