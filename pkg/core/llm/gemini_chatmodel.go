package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"

	"marketaoc/pkg/core/session"
)

// GeminiChatModel is the genai-backed ChatModel adapter, grounded in
// pkg/core/llm/gemini.go's GenerateResponse (client construction, system
// instruction wiring, JSON response-mode heuristic). It extends that
// pattern with real function-calling support, since gemini.go's
// string-in-string-out Provider interface has nowhere to carry tool-call
// directives and the Analyst Node Runtime needs them.
type GeminiChatModel struct {
	Model string
}

var _ ChatModel = (*GeminiChatModel)(nil)

func toGenaiSchema(params map[string]any) *genai.Schema {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	var schema genai.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}
	return &schema
}

func (m *GeminiChatModel) Invoke(ctx context.Context, messages []session.Message, tools []ToolSpec) (session.Message, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return session.Message{}, fmt.Errorf("gemini chatmodel: GEMINI_API_KEY not set")
	}

	model := m.Model
	if model == "" {
		model = "gemini-2.0-flash-exp"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return session.Message{}, fmt.Errorf("gemini chatmodel: client init failed: %w", err)
	}

	config := &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(0.1))}

	var history []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case session.RoleSystem:
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
		case session.RoleUser:
			history = append(history, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: msg.Content}}})
		case session.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: msg.Content}}})
		case session.RoleTool:
			var resp map[string]any
			_ = json.Unmarshal([]byte(msg.Content), &resp)
			history = append(history, &genai.Content{Role: "user", Parts: []*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{Name: msg.ToolCallID, Response: resp},
			}}})
		}
	}

	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	result, err := client.Models.GenerateContent(ctx, model, history, config)
	if err != nil {
		return session.Message{}, fmt.Errorf("gemini chatmodel: generation failed: %w", err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return session.Message{}, fmt.Errorf("gemini chatmodel: empty response")
	}

	out := session.Message{Role: session.RoleAssistant, Timestamp: time.Now()}
	for _, part := range result.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			out.ToolCalls = append(out.ToolCalls, session.ToolCall{
				ID:        part.FunctionCall.Name,
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
			continue
		}
		if part.Text != "" {
			out.Content += part.Text
		}
	}

	return out, nil
}
