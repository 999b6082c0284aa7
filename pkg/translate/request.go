package translate

import (
	"encoding/json"
	"fmt"
	"strings"

	"ccproxy/pkg/claude"
	"ccproxy/pkg/providers"
)

// ToOpenAI rewrites a Claude Messages request into an OpenAI Chat
// Completions body, overriding model with the upstream model the caller
// already selected (§4.4). minTokens/maxTokens clamp max_tokens.
func ToOpenAI(req *claude.Request, upstreamModel string, minTokens, maxTokens int) (*providers.CompletionRequest, error) {
	if len(req.Messages) == 0 {
		return nil, &providers.Error{Kind: providers.KindInvalidRequest, Message: "messages must not be empty"}
	}

	var messages []providers.Message
	if sys := systemMessage(req.System); sys != nil {
		messages = append(messages, *sys)
	}

	for _, m := range req.Messages {
		translated, err := translateMessage(m)
		if err != nil {
			return nil, err
		}
		messages = append(messages, translated...)
	}

	out := &providers.CompletionRequest{
		Model:       upstreamModel,
		Messages:    messages,
		MaxTokens:   clamp(req.MaxTokens, minTokens, maxTokens),
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      req.Stream,
		Stop:        req.StopSequences,
	}
	// top_k has no OpenAI equivalent and is intentionally dropped (§4.4).

	if len(req.Tools) > 0 {
		out.Tools = make([]providers.Tool, len(req.Tools))
		for i, t := range req.Tools {
			out.Tools[i] = providers.Tool{
				Type: "function",
				Function: providers.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			}
		}
	}

	if tc := translateToolChoice(req.ToolChoice); tc != nil {
		out.ToolChoice = tc
	}

	return out, nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func systemMessage(system interface{}) *providers.Message {
	switch v := system.(type) {
	case string:
		if v == "" {
			return nil
		}
		return &providers.Message{Role: "system", Content: v}
	case []claude.TextBlock:
		if len(v) == 0 {
			return nil
		}
		parts := make([]string, len(v))
		for i, b := range v {
			parts[i] = b.Text
		}
		return &providers.Message{Role: "system", Content: strings.Join(parts, "\n")}
	default:
		return nil
	}
}

// translateMessage expands one Claude message into zero or more OpenAI
// messages: a tool_result block becomes its own tool-role message, so one
// Claude user message can fan out into several OpenAI messages.
func translateMessage(m claude.Message) ([]providers.Message, error) {
	switch content := m.Content.(type) {
	case string:
		return []providers.Message{{Role: m.Role, Content: content}}, nil
	case claude.Blocks:
		return translateBlocks(m.Role, content)
	default:
		return []providers.Message{{Role: m.Role, Content: ""}}, nil
	}
}

func translateBlocks(role string, blocks claude.Blocks) ([]providers.Message, error) {
	var out []providers.Message
	var parts []providers.ContentPart
	var toolCalls []providers.ToolCall

	flushMain := func() {
		if len(parts) == 0 && len(toolCalls) == 0 {
			return
		}
		msg := providers.Message{Role: role}
		if len(parts) > 0 {
			if len(parts) == 1 && parts[0].Type == "text" {
				msg.Content = parts[0].Text
			} else {
				msg.Content = parts
			}
		}
		msg.ToolCalls = toolCalls
		out = append(out, msg)
		parts = nil
		toolCalls = nil
	}

	for _, b := range blocks {
		switch block := b.(type) {
		case claude.TextBlock:
			parts = append(parts, providers.ContentPart{Type: "text", Text: block.Text})
		case claude.ImageBlock:
			parts = append(parts, providers.ContentPart{
				Type: "image_url",
				ImageURL: &providers.ImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", block.Source.MediaType, block.Source.Data),
				},
			})
		case claude.ToolUseBlock:
			input := block.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			toolCalls = append(toolCalls, providers.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: providers.FunctionCall{
					Name:      block.Name,
					Arguments: string(input),
				},
			})
		case claude.ToolResultBlock:
			flushMain()
			out = append(out, providers.Message{
				Role:       "tool",
				ToolCallID: block.ToolUseID,
				Content:    toolResultText(block.Content),
			})
		}
	}
	flushMain()
	return out, nil
}

func toolResultText(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case claude.Blocks:
		var parts []string
		for _, b := range v {
			if t, ok := b.(claude.TextBlock); ok {
				parts = append(parts, t.Text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

func translateToolChoice(choice interface{}) interface{} {
	switch v := choice.(type) {
	case nil:
		return nil
	case string:
		switch v {
		case "auto", "any":
			return "auto"
		case "none":
			return "none"
		default:
			return nil
		}
	case map[string]interface{}:
		t, _ := v["type"].(string)
		if t != "tool" {
			return nil
		}
		name, _ := v["name"].(string)
		return map[string]interface{}{
			"type":     "function",
			"function": map[string]interface{}{"name": name},
		}
	default:
		return nil
	}
}
