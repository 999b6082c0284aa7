package translate

import (
	"ccproxy/pkg/claude"
	"ccproxy/pkg/providers"
)

// StreamTranslator is the streaming Response Translator's state machine
// (§4.5, §9): Feed consumes one upstream chunk and yields zero or more
// outbound Claude events; Finish closes whatever remains open. It holds
// no goroutines itself — the SSE transport read loop belongs to the
// Upstream Client.
type StreamTranslator struct {
	messageID    string
	inboundModel string

	started bool

	textOpen  bool
	textIndex int

	toolBlockByUpstreamIndex map[int]int
	toolOpen                 []bool // indexed by our block index

	nextIndex int

	finishReason string
	outputTokens int
}

// NewStreamTranslator creates a translator for one streamed reply.
// messageID should be a freshly minted identifier; inboundModel is the
// Claude model name to echo back.
func NewStreamTranslator(messageID, inboundModel string) *StreamTranslator {
	return &StreamTranslator{
		messageID:                messageID,
		inboundModel:             inboundModel,
		toolBlockByUpstreamIndex: make(map[int]int),
	}
}

// Feed processes one decoded upstream chunk and returns the outbound
// events it produces.
func (t *StreamTranslator) Feed(chunk *providers.StreamChunk) []claude.Event {
	var events []claude.Event

	if !t.started {
		t.started = true
		events = append(events, claude.Event{
			Name: "message_start",
			Payload: claude.MessageStartPayload{
				Type: "message_start",
				Message: claude.MessageStartMsg{
					ID:      t.messageID,
					Type:    "message",
					Role:    "assistant",
					Model:   t.inboundModel,
					Content: []any{},
				},
			},
		})
	}

	if chunk.Usage != nil {
		t.outputTokens = chunk.Usage.CompletionTokens
	}

	for _, choice := range chunk.Choices {
		if choice.FinishReason != "" {
			t.finishReason = choice.FinishReason
		}

		delta := choice.Delta
		if delta.Content != "" {
			events = append(events, t.openTextBlock()...)
			events = append(events, claude.Event{
				Name: "content_block_delta",
				Payload: claude.ContentBlockDeltaPayload{
					Type: "content_block_delta", Index: t.textIndex,
					Delta: claude.TextDelta{Type: "text_delta", Text: delta.Content},
				},
			})
		}

		for _, tc := range delta.ToolCalls {
			idx, openEvents := t.openToolBlock(tc)
			events = append(events, openEvents...)
			if tc.Function.Arguments != "" {
				events = append(events, claude.Event{
					Name: "content_block_delta",
					Payload: claude.ContentBlockDeltaPayload{
						Type: "content_block_delta", Index: idx,
						Delta: claude.InputJSONDelta{Type: "input_json_delta", PartialJSON: tc.Function.Arguments},
					},
				})
			}
		}
	}

	return events
}

func (t *StreamTranslator) openTextBlock() []claude.Event {
	if t.textOpen {
		return nil
	}
	t.textOpen = true
	t.textIndex = t.nextIndex
	t.nextIndex++
	return []claude.Event{{
		Name: "content_block_start",
		Payload: claude.ContentBlockStartPayload{
			Type: "content_block_start", Index: t.textIndex,
			ContentBlock: claude.TextBlockStart{Type: "text", Text: ""},
		},
	}}
}

func (t *StreamTranslator) openToolBlock(tc providers.StreamToolCall) (int, []claude.Event) {
	if idx, ok := t.toolBlockByUpstreamIndex[tc.Index]; ok {
		return idx, nil
	}
	idx := t.nextIndex
	t.nextIndex++
	t.toolBlockByUpstreamIndex[tc.Index] = idx
	for len(t.toolOpen) <= idx {
		t.toolOpen = append(t.toolOpen, false)
	}
	t.toolOpen[idx] = true

	return idx, []claude.Event{{
		Name: "content_block_start",
		Payload: claude.ContentBlockStartPayload{
			Type: "content_block_start", Index: idx,
			ContentBlock: claude.ToolUseBlockStart{
				Type: "tool_use", ID: tc.ID, Name: tc.Function.Name, Input: map[string]any{},
			},
		},
	}}
}

// Finish closes every open block in ascending index order and emits the
// terminal message_delta/message_stop pair.
func (t *StreamTranslator) Finish() []claude.Event {
	var events []claude.Event

	closed := make(map[int]bool)
	if t.textOpen {
		events = append(events, t.closeBlock(t.textIndex))
		closed[t.textIndex] = true
		t.textOpen = false
	}
	for idx, open := range t.toolOpen {
		if open && !closed[idx] {
			events = append(events, t.closeBlock(idx))
			t.toolOpen[idx] = false
		}
	}
	// sort by index for deterministic ascending order (text/tool interleave
	// depends on first-appearance order, already encoded in the indices).
	sortEventsByIndex(events)

	events = append(events, claude.Event{
		Name: "message_delta",
		Payload: claude.MessageDeltaPayload{
			Type:  "message_delta",
			Delta: claude.MessageDeltaInfo{StopReason: mapStopReason(t.finishReason)},
			Usage: claude.MessageDeltaUsage{OutputTokens: t.outputTokens},
		},
	})
	events = append(events, claude.Event{Name: "message_stop", Payload: claude.MessageStopPayload{Type: "message_stop"}})
	return events
}

func (t *StreamTranslator) closeBlock(index int) claude.Event {
	return claude.Event{
		Name:    "content_block_stop",
		Payload: claude.ContentBlockStopPayload{Type: "content_block_stop", Index: index},
	}
}

func sortEventsByIndex(events []claude.Event) {
	for i := 1; i < len(events); i++ {
		for j := i; j > 0; j-- {
			a, aok := events[j].Payload.(claude.ContentBlockStopPayload)
			b, bok := events[j-1].Payload.(claude.ContentBlockStopPayload)
			if aok && bok && a.Index < b.Index {
				events[j], events[j-1] = events[j-1], events[j]
			} else {
				break
			}
		}
	}
}
