package translate

import (
	"testing"

	"ccproxy/pkg/claude"
	"ccproxy/pkg/providers"
)

func eventNames(events []claude.Event) []string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

func TestStreamTranslator_TextOnly(t *testing.T) {
	tr := NewStreamTranslator("msg_1", "claude-3-sonnet")

	var all []claude.Event
	all = append(all, tr.Feed(&providers.StreamChunk{
		Choices: []providers.StreamChoice{{Delta: providers.StreamDelta{Content: "Hello"}}},
	})...)
	all = append(all, tr.Feed(&providers.StreamChunk{
		Choices: []providers.StreamChoice{{Delta: providers.StreamDelta{Content: " world"}, FinishReason: "stop"}},
	})...)
	all = append(all, tr.Finish()...)

	want := []string{
		"message_start",
		"content_block_start",
		"content_block_delta",
		"content_block_delta",
		"content_block_stop",
		"message_delta",
		"message_stop",
	}
	got := eventNames(all)
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	delta := all[len(all)-2].Payload.(claude.MessageDeltaPayload)
	if delta.Delta.StopReason != "end_turn" {
		t.Errorf("stop_reason = %s, want end_turn", delta.Delta.StopReason)
	}
}

func TestStreamTranslator_TextThenToolCall(t *testing.T) {
	tr := NewStreamTranslator("msg_2", "claude-3-sonnet")

	var all []claude.Event
	all = append(all, tr.Feed(&providers.StreamChunk{
		Choices: []providers.StreamChoice{{Delta: providers.StreamDelta{Content: "Let me check"}}},
	})...)
	all = append(all, tr.Feed(&providers.StreamChunk{
		Choices: []providers.StreamChoice{{Delta: providers.StreamDelta{ToolCalls: []providers.StreamToolCall{
			{Index: 0, ID: "call_1", Function: providers.FunctionCall{Name: "get_weather", Arguments: `{"ci`}},
		}}}},
	})...)
	all = append(all, tr.Feed(&providers.StreamChunk{
		Choices: []providers.StreamChoice{{Delta: providers.StreamDelta{ToolCalls: []providers.StreamToolCall{
			{Index: 0, Function: providers.FunctionCall{Arguments: `ty":"N`}},
		}}}},
	})...)
	all = append(all, tr.Feed(&providers.StreamChunk{
		Choices: []providers.StreamChoice{{
			Delta: providers.StreamDelta{ToolCalls: []providers.StreamToolCall{
				{Index: 0, Function: providers.FunctionCall{Arguments: `Y"}`}},
			}},
			FinishReason: "tool_calls",
		}},
	})...)
	all = append(all, tr.Finish()...)

	want := []string{
		"message_start",
		"content_block_start", // text, index 0
		"content_block_delta", // text delta
		"content_block_start", // tool_use, index 1
		"content_block_delta", // input_json_delta
		"content_block_delta", // input_json_delta
		"content_block_delta", // input_json_delta
		"content_block_stop",  // index 0
		"content_block_stop",  // index 1
		"message_delta",
		"message_stop",
	}
	got := eventNames(all)
	if len(got) != len(want) {
		t.Fatalf("events = %v (%d), want %v (%d)", got, len(got), want, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	toolStart := all[3].Payload.(claude.ContentBlockStartPayload)
	if toolStart.Index != 1 {
		t.Errorf("tool_use block index = %d, want 1", toolStart.Index)
	}
	toolUse := toolStart.ContentBlock.(claude.ToolUseBlockStart)
	if toolUse.Name != "get_weather" || toolUse.ID != "call_1" {
		t.Errorf("tool_use start = %+v", toolUse)
	}

	stops := []int{
		all[7].Payload.(claude.ContentBlockStopPayload).Index,
		all[8].Payload.(claude.ContentBlockStopPayload).Index,
	}
	if stops[0] != 0 || stops[1] != 1 {
		t.Errorf("stop order = %v, want [0 1]", stops)
	}

	delta := all[len(all)-2].Payload.(claude.MessageDeltaPayload)
	if delta.Delta.StopReason != "tool_use" {
		t.Errorf("stop_reason = %s, want tool_use", delta.Delta.StopReason)
	}
}

func TestStreamTranslator_UsageCarriedToMessageDelta(t *testing.T) {
	tr := NewStreamTranslator("msg_3", "claude-3-haiku")
	tr.Feed(&providers.StreamChunk{
		Choices: []providers.StreamChoice{{Delta: providers.StreamDelta{Content: "hi"}, FinishReason: "stop"}},
		Usage:   &providers.Usage{CompletionTokens: 7},
	})
	events := tr.Finish()
	delta := events[len(events)-2].Payload.(claude.MessageDeltaPayload)
	if delta.Usage.OutputTokens != 7 {
		t.Errorf("output_tokens = %d, want 7", delta.Usage.OutputTokens)
	}
}
