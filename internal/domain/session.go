package domain

import (
	"time"
)

// SessionState represents the live state of an agent session
type SessionState string

const (
	StateError   SessionState = "error"
	StateIdle    SessionState = "idle"
	StateWorking SessionState = "working"
)

// Status symbols (Unicode)
const (
	SymbolError   = "✗" // Red - last run failed
	SymbolIdle    = "○" // Yellow - idle
	SymbolWorking = "●" // Green - actively working
)

// AgentClaude is the agent type for sessions imported from Claude transcripts
const AgentClaude = "claude"

// Valid reports whether s is a known state
func (s SessionState) Valid() bool {
	switch s {
	case StateError, StateIdle, StateWorking:
		return true
	}
	return false
}

// Symbol returns the status symbol for the state
func (s SessionState) Symbol() string {
	switch s {
	case StateError:
		return SymbolError
	case StateWorking:
		return SymbolWorking
	default:
		return SymbolIdle
	}
}

// Session is one agent conversation backed by a transcript file (domain entity)
type Session struct {
	AgentType    string
	ArchivedAt   *time.Time
	CLISessionID string
	CreatedAt    time.Time
	ErrorMessage string
	ID           string
	IsArchived   bool
	Metadata     SessionMetadata
	Name         string
	ProjectID    string
	SessionPath  string
	State        SessionState
	UpdatedAt    time.Time
	UserID       string
}

// SessionMetadata is recomputed from the transcript on every reconciliation pass
type SessionMetadata struct {
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	FirstMessagePreview string     `json:"firstMessagePreview"`
	LastMessageAt       *time.Time `json:"lastMessageAt,omitempty"`
	MessageCount        int        `json:"messageCount"`
	TotalTokens         int        `json:"totalTokens"`
}

// Equal compares metadata by value, treating timestamps as instants
func (m SessionMetadata) Equal(other SessionMetadata) bool {
	return m.MessageCount == other.MessageCount &&
		m.TotalTokens == other.TotalTokens &&
		m.FirstMessagePreview == other.FirstMessagePreview &&
		timePtrEqual(m.CreatedAt, other.CreatedAt) &&
		timePtrEqual(m.LastMessageAt, other.LastMessageAt)
}

// Patch returns a patch that sets every field of m
func (m SessionMetadata) Patch() *MetadataPatch {
	count, tokens, preview := m.MessageCount, m.TotalTokens, m.FirstMessagePreview
	return &MetadataPatch{
		CreatedAt:           m.CreatedAt,
		FirstMessagePreview: &preview,
		LastMessageAt:       m.LastMessageAt,
		MessageCount:        &count,
		TotalTokens:         &tokens,
	}
}

// Apply overwrites only the fields present in p
func (m SessionMetadata) Apply(p *MetadataPatch) SessionMetadata {
	if p == nil {
		return m
	}
	if p.CreatedAt != nil {
		t := *p.CreatedAt
		m.CreatedAt = &t
	}
	if p.FirstMessagePreview != nil {
		m.FirstMessagePreview = *p.FirstMessagePreview
	}
	if p.LastMessageAt != nil {
		t := *p.LastMessageAt
		m.LastMessageAt = &t
	}
	if p.MessageCount != nil {
		m.MessageCount = *p.MessageCount
	}
	if p.TotalTokens != nil {
		m.TotalTokens = *p.TotalTokens
	}
	return m
}

// MetadataPatch carries a partial metadata update; nil fields are left untouched
type MetadataPatch struct {
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	FirstMessagePreview *string    `json:"firstMessagePreview,omitempty"`
	LastMessageAt       *time.Time `json:"lastMessageAt,omitempty"`
	MessageCount        *int       `json:"messageCount,omitempty"`
	TotalTokens         *int       `json:"totalTokens,omitempty"`
}

// TranscriptSummary is what the parser extracts from one transcript file
type TranscriptSummary struct {
	CWD                 string
	CreatedAt           *time.Time
	FirstMessagePreview string
	LastMessageAt       *time.Time
	LineCount           int
	MessageCount        int
	ModTime             time.Time
	TotalTokens         int
	UserMessageCount    int
}

// Metadata converts the summary into the persisted session metadata
func (t TranscriptSummary) Metadata() SessionMetadata {
	return SessionMetadata{
		CreatedAt:           t.CreatedAt,
		FirstMessagePreview: t.FirstMessagePreview,
		LastMessageAt:       t.LastMessageAt,
		MessageCount:        t.MessageCount,
		TotalTokens:         t.TotalTokens,
	}
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
