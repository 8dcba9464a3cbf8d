package domain

import "encoding/json"

// Message roles
const (
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleUser      = "user"
)

// Content block types
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolResult = "tool_result"
	BlockToolUse    = "tool_use"
)

// ContentBlock is one typed unit of message content. Type selects which
// of the remaining fields are meaningful.
type ContentBlock struct {
	Content   json.RawMessage `json:"content,omitempty"`
	ID        string          `json:"id,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Name      string          `json:"name,omitempty"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Type      string          `json:"type"`
}

// TextBlock builds a text content block
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// UnifiedMessage is the client-facing message shape shared by all agents
type UnifiedMessage struct {
	Content     []ContentBlock `json:"content"`
	ID          string         `json:"id"`
	IsError     bool           `json:"isError"`
	IsStreaming bool           `json:"isStreaming"`
	ParentID    string         `json:"parentId,omitempty"`
	Role        string         `json:"role"`
	Usage       *TokenUsage    `json:"usage,omitempty"`
}

// Clone returns a copy that shares no slices with m
func (m UnifiedMessage) Clone() UnifiedMessage {
	c := m
	if m.Content != nil {
		c.Content = make([]ContentBlock, len(m.Content))
		copy(c.Content, m.Content)
	}
	if m.Usage != nil {
		u := *m.Usage
		c.Usage = &u
	}
	return c
}

// TokenUsage holds the four token counters reported by the agent API
type TokenUsage struct {
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
}

// Total sums all four counters
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}
