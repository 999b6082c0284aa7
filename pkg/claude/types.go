package claude

import "encoding/json"

// Block is a Claude content block: the tagged union described in the
// design notes (§9). Each concrete variant carries its own "type" field
// for the JSON boundary; code elsewhere switches on a type assertion,
// never on a string-keyed property bag.
type Block interface {
	blockType() string
}

// TextBlock is a plain text content block.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) blockType() string { return "text" }

// MarshalJSON emits the "type" discriminator alongside the block's fields.
func (b TextBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"text", b.Text})
}

// ImageSource carries a base64-encoded image payload and its media type.
type ImageSource struct {
	Type      string `json:"type"` // always "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ImageBlock is an inline image content block.
type ImageBlock struct {
	Source ImageSource `json:"source"`
}

func (ImageBlock) blockType() string { return "image" }

func (b ImageBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type   string      `json:"type"`
		Source ImageSource `json:"source"`
	}{"image", b.Source})
}

// ToolUseBlock is an assistant-issued tool invocation.
type ToolUseBlock struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

func (ToolUseBlock) blockType() string { return "tool_use" }

func (b ToolUseBlock) MarshalJSON() ([]byte, error) {
	input := b.Input
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	return json.Marshal(struct {
		Type  string          `json:"type"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	}{"tool_use", b.ID, b.Name, input})
}

// ToolResultBlock carries the result of a tool call back to the model.
// Content is either a string or a Blocks list.
type ToolResultBlock struct {
	ToolUseID string      `json:"tool_use_id"`
	Content   interface{} `json:"content"`
	IsError   bool        `json:"is_error,omitempty"`
}

func (ToolResultBlock) blockType() string { return "tool_result" }

func (b ToolResultBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      string      `json:"type"`
		ToolUseID string      `json:"tool_use_id"`
		Content   interface{} `json:"content,omitempty"`
		IsError   bool        `json:"is_error,omitempty"`
	}{"tool_result", b.ToolUseID, b.Content, b.IsError})
}

// Blocks is an ordered list of content blocks that decodes by peeking at
// each element's "type" discriminator before dispatching to the concrete
// variant.
type Blocks []Block

func (bs *Blocks) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Blocks, 0, len(raw))
	for _, r := range raw {
		block, err := decodeBlock(r)
		if err != nil {
			return err
		}
		out = append(out, block)
	}
	*bs = out
	return nil
}

func decodeBlock(raw json.RawMessage) (Block, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case "text":
		var v struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return TextBlock{Text: v.Text}, nil
	case "image":
		var v struct {
			Source ImageSource `json:"source"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return ImageBlock{Source: v.Source}, nil
	case "tool_use":
		var v struct {
			ID    string          `json:"id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return ToolUseBlock{ID: v.ID, Name: v.Name, Input: v.Input}, nil
	case "tool_result":
		var v struct {
			ToolUseID string          `json:"tool_use_id"`
			Content   json.RawMessage `json:"content"`
			IsError   bool            `json:"is_error"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		content, err := decodeToolResultContent(v.Content)
		if err != nil {
			return nil, err
		}
		return ToolResultBlock{ToolUseID: v.ToolUseID, Content: content, IsError: v.IsError}, nil
	default:
		var v struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(raw, &v)
		return TextBlock{Text: v.Text}, nil
	}
}

func decodeToolResultContent(raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var asBlocks Blocks
	if err := json.Unmarshal(raw, &asBlocks); err == nil {
		return asBlocks, nil
	}
	return string(raw), nil
}

// Message is one Claude conversation turn. Content is either a string or
// a Blocks list, matching the request/response schema's polymorphism.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	if len(raw.Content) == 0 {
		m.Content = ""
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw.Content, &asString); err == nil {
		m.Content = asString
		return nil
	}
	var asBlocks Blocks
	if err := json.Unmarshal(raw.Content, &asBlocks); err != nil {
		return err
	}
	m.Content = asBlocks
	return nil
}

// Tool is one tool definition offered to the model.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema,omitempty"`
}

// Request is an inbound POST /v1/messages body.
type Request struct {
	Model         string      `json:"model"`
	Messages      []Message   `json:"messages"`
	System        interface{} `json:"system,omitempty"` // string or []TextBlock
	MaxTokens     int         `json:"max_tokens"`
	Temperature   *float64    `json:"temperature,omitempty"`
	TopP          *float64    `json:"top_p,omitempty"`
	TopK          *int        `json:"top_k,omitempty"`
	StopSequences []string    `json:"stop_sequences,omitempty"`
	Stream        bool        `json:"stream,omitempty"`
	Tools         []Tool      `json:"tools,omitempty"`
	ToolChoice    interface{} `json:"tool_choice,omitempty"`
}

func (r *Request) UnmarshalJSON(data []byte) error {
	type alias Request
	var raw struct {
		alias
		System json.RawMessage `json:"system"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Request(raw.alias)
	if len(raw.System) == 0 {
		return nil
	}
	var asString string
	if err := json.Unmarshal(raw.System, &asString); err == nil {
		r.System = asString
		return nil
	}
	var asBlocks []TextBlock
	if err := json.Unmarshal(raw.System, &asBlocks); err != nil {
		return err
	}
	r.System = asBlocks
	return nil
}

// Usage is the Claude token-accounting block.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is a unary POST /v1/messages reply.
type Response struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"` // "message"
	Role         string  `json:"role"` // "assistant"
	Model        string  `json:"model"`
	Content      Blocks  `json:"content"`
	StopReason   string  `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
	Usage        Usage   `json:"usage"`

	// Provider names which upstream served this reply. Not part of the
	// Claude Messages API wire shape (omitted from outbound JSON); callers
	// that need it, such as the admin test-connection endpoint, read it
	// off the struct directly.
	Provider string `json:"-"`
}
