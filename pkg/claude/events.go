package claude

// Event is one server-sent event in the streaming reply sequence (§4.5).
// Name is the SSE "event:" line; Payload is JSON-marshaled for the
// "data:" line.
type Event struct {
	Name    string
	Payload interface{}
}

// MessageStartPayload begins a streamed reply.
type MessageStartPayload struct {
	Type    string         `json:"type"` // "message_start"
	Message MessageStartMsg `json:"message"`
}

// MessageStartMsg is the partial message object carried by message_start.
type MessageStartMsg struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // "message"
	Role    string `json:"role"` // "assistant"
	Model   string `json:"model"`
	Content []any  `json:"content"`
	Usage   Usage  `json:"usage"`
}

// ContentBlockStartPayload opens a new content block at Index.
type ContentBlockStartPayload struct {
	Type         string      `json:"type"` // "content_block_start"
	Index        int         `json:"index"`
	ContentBlock interface{} `json:"content_block"`
}

// TextBlockStart is the content_block value for a freshly opened text block.
type TextBlockStart struct {
	Type string `json:"type"` // "text"
	Text string `json:"text"` // always ""
}

// ToolUseBlockStart is the content_block value for a freshly opened tool_use block.
type ToolUseBlockStart struct {
	Type  string `json:"type"` // "tool_use"
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input any    `json:"input"` // always an empty object
}

// ContentBlockDeltaPayload carries an incremental update to an open block.
type ContentBlockDeltaPayload struct {
	Type  string      `json:"type"` // "content_block_delta"
	Index int         `json:"index"`
	Delta interface{} `json:"delta"`
}

// TextDelta is a content_block_delta's delta for a text block.
type TextDelta struct {
	Type string `json:"type"` // "text_delta"
	Text string `json:"text"`
}

// InputJSONDelta is a content_block_delta's delta for a tool_use block;
// PartialJSON accumulates into the tool call's arguments string.
type InputJSONDelta struct {
	Type        string `json:"type"` // "input_json_delta"
	PartialJSON string `json:"partial_json"`
}

// ContentBlockStopPayload closes the block at Index.
type ContentBlockStopPayload struct {
	Type  string `json:"type"` // "content_block_stop"
	Index int    `json:"index"`
}

// MessageDeltaPayload carries the terminal stop_reason and a usage subset.
type MessageDeltaPayload struct {
	Type  string          `json:"type"` // "message_delta"
	Delta MessageDeltaInfo `json:"delta"`
	Usage MessageDeltaUsage `json:"usage"`
}

// MessageDeltaInfo carries the final stop_reason/stop_sequence.
type MessageDeltaInfo struct {
	StopReason   string  `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// MessageDeltaUsage is the output-token subset reported at stream end.
type MessageDeltaUsage struct {
	OutputTokens int `json:"output_tokens"`
}

// MessageStopPayload is the final event of a well-formed stream.
type MessageStopPayload struct {
	Type string `json:"type"` // "message_stop"
}
