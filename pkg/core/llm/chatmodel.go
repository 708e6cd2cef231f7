// Package llm adapts concrete model backends to the abstract ChatModel
// capability, the AOC's only LLM dependency. The AOC core never imports a
// provider SDK directly; it depends on this interface, with agent.Manager
// handling routing across the concrete provider implementations.
package llm

import (
	"context"

	"marketaoc/pkg/core/session"
)

// ToolSpec describes one tool the model may call: a name, a human
// description, and a JSON-schema of its arguments. This is the
// provider-agnostic shape every adapter translates into its own wire
// format (OpenAI-style "functions", Gemini's FunctionDeclaration, ...).
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema, e.g. {"type":"object","properties":{...}}
}

// ChatModel is the abstract model capability:
// invoke(messages, tools?) -> assistant_message, where the assistant
// message carries either textual content or tool-call directives.
type ChatModel interface {
	Invoke(ctx context.Context, messages []session.Message, tools []ToolSpec) (session.Message, error)
}
