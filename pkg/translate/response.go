package translate

import (
	"encoding/json"
	"log/slog"

	"ccproxy/pkg/claude"
	"ccproxy/pkg/providers"
)

// ToClaude rewrites a unary OpenAI completion into a Claude-shaped reply
// (§4.5). inboundModel is echoed back verbatim rather than the upstream
// model actually used.
func ToClaude(resp *providers.CompletionResponse, inboundModel string, logger *slog.Logger) *claude.Response {
	var blocks claude.Blocks
	var choice providers.Choice
	if len(resp.Choices) > 0 {
		choice = resp.Choices[0]
	}

	if text := messageText(choice.Message.Content); text != "" {
		blocks = append(blocks, claude.TextBlock{Text: text})
	}

	for _, tc := range choice.Message.ToolCalls {
		input, err := parseToolArguments(tc.Function.Arguments)
		if err != nil {
			logger.Warn("malformed tool call arguments, using empty object",
				"kind", providers.KindInvalidRequest, "tool", tc.Function.Name, "error", err)
			input = json.RawMessage("{}")
		}
		blocks = append(blocks, claude.ToolUseBlock{ID: tc.ID, Name: tc.Function.Name, Input: input})
	}

	return &claude.Response{
		ID:         resp.ID,
		Type:       "message",
		Role:       "assistant",
		Model:      inboundModel,
		Content:    blocks,
		StopReason: mapStopReason(choice.FinishReason),
		Usage: claude.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
}

func messageText(content interface{}) string {
	if s, ok := content.(string); ok {
		return s
	}
	return ""
}

func parseToolArguments(arguments string) (json.RawMessage, error) {
	if arguments == "" {
		return json.RawMessage("{}"), nil
	}
	var probe interface{}
	if err := json.Unmarshal([]byte(arguments), &probe); err != nil {
		return nil, err
	}
	return json.RawMessage(arguments), nil
}

// mapStopReason maps an OpenAI finish_reason to a Claude stop_reason
// (§4.5); unrecognized reasons map to end_turn.
func mapStopReason(reason string) string {
	switch reason {
	case "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	case "tool_calls":
		return "tool_use"
	default:
		return "end_turn"
	}
}
