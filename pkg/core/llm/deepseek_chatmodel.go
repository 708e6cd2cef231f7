package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"marketaoc/pkg/core/session"
)

// DeepSeekChatModel is the ChatModel adapter for DeepSeek's OpenAI-compatible
// chat-completions endpoint. Unlike the plain Provider path, it carries
// tool definitions on the request and surfaces tool-call directives
// (name + json args) from the response.
type DeepSeekChatModel struct {
	Model string
}

var _ ChatModel = (*DeepSeekChatModel)(nil)

type deepseekFunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type deepseekTool struct {
	Type     string               `json:"type"`
	Function deepseekFunctionDef `json:"function"`
}

type deepseekToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type deepseekChatMessage struct {
	Role       string             `json:"role"`
	Content    string             `json:"content,omitempty"`
	ToolCalls  []deepseekToolCall `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
}

type deepseekChatRequest struct {
	Model      string                 `json:"model"`
	Messages   []deepseekChatMessage  `json:"messages"`
	Tools      []deepseekTool         `json:"tools,omitempty"`
	ToolChoice string                 `json:"tool_choice,omitempty"`
	Temperature float64               `json:"temperature"`
}

type deepseekChatResponse struct {
	Choices []struct {
		Message deepseekChatMessage `json:"message"`
	} `json:"choices"`
}

func (m *DeepSeekChatModel) Invoke(ctx context.Context, messages []session.Message, tools []ToolSpec) (session.Message, error) {
	apiKey := os.Getenv("DEEPSEEK_API_KEY")
	if apiKey == "" {
		return session.Message{}, fmt.Errorf("deepseek chatmodel: DEEPSEEK_API_KEY not set")
	}

	model := m.Model
	if model == "" {
		model = "deepseek-chat"
	}

	reqMsgs := make([]deepseekChatMessage, 0, len(messages))
	for _, msg := range messages {
		dm := deepseekChatMessage{Role: string(msg.Role), Content: msg.Content, ToolCallID: msg.ToolCallID}
		for _, tc := range msg.ToolCalls {
			dm.ToolCalls = append(dm.ToolCalls, deepseekToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				}{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		reqMsgs = append(reqMsgs, dm)
	}

	req := deepseekChatRequest{Model: model, Messages: reqMsgs, Temperature: 0.3}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
		for _, t := range tools {
			req.Tools = append(req.Tools, deepseekTool{
				Type: "function",
				Function: deepseekFunctionDef{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
			})
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return session.Message{}, fmt.Errorf("deepseek chatmodel: marshal failed: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.deepseek.com/chat/completions", bytes.NewReader(body))
	if err != nil {
		return session.Message{}, fmt.Errorf("deepseek chatmodel: request build failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return session.Message{}, fmt.Errorf("deepseek chatmodel: call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return session.Message{}, fmt.Errorf("deepseek chatmodel: read body failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return session.Message{}, fmt.Errorf("deepseek chatmodel: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed deepseekChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return session.Message{}, fmt.Errorf("deepseek chatmodel: unmarshal failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return session.Message{}, fmt.Errorf("deepseek chatmodel: no choices in response")
	}

	choice := parsed.Choices[0].Message
	out := session.Message{Role: session.RoleAssistant, Content: choice.Content, Timestamp: time.Now()}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, session.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}
	return out, nil
}
