package agent

import "marketaoc/pkg/core/llm"

// GetChatModel resolves the tool-call-capable ChatModel for an analyst
// node, honoring the same per-agent-then-global provider resolution order
// as GetProvider. Only providers with a real ChatModel adapter are
// supported here (gemini, deepseek); any other configured provider name
// falls back to gemini, since the Analyst Node Runtime requires
// genuine tool-call directives that the legacy string-in-string-out
// Provider interface cannot carry.
func (m *Manager) GetChatModel(agentType string) llm.ChatModel {
	name := m.config.ActiveProvider
	if agentConfig, ok := m.config.Agents[agentType]; ok && agentConfig.Provider != "" {
		name = agentConfig.Provider
	}

	switch name {
	case "deepseek":
		return &llm.DeepSeekChatModel{}
	case "gemini":
		return &llm.GeminiChatModel{}
	default:
		return &llm.GeminiChatModel{}
	}
}
