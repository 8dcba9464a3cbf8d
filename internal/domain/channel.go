package domain

import (
	"fmt"
	"time"
)

const channelPrefix = "session:"

// ChannelName returns the channel that carries events for a session
func ChannelName(sessionID string) string {
	return channelPrefix + sessionID
}

// CommandType identifies an inbound channel command
type CommandType string

const (
	CommandCancel      CommandType = "cancel"
	CommandSendMessage CommandType = "send_message"
	CommandSubscribe   CommandType = "subscribe"
	CommandUnsubscribe CommandType = "unsubscribe"
)

// Attachment is a file reference sent alongside a message
type Attachment struct {
	MediaType string `json:"mediaType,omitempty"`
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
}

// Command is a client request addressed to one session
type Command struct {
	Attachments []Attachment   `json:"attachments,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	SessionID   string         `json:"sessionId"`
	Text        string         `json:"text,omitempty"`
	Type        CommandType    `json:"type"`
}

// EventType identifies an outbound channel event
type EventType string

const (
	EventError            EventType = "error"
	EventMessageComplete  EventType = "message_complete"
	EventSessionUpdated   EventType = "session_updated"
	EventStreamOutput     EventType = "stream_output"
	EventSubscribeSuccess EventType = "subscribe_success"
)

// Event is an outbound message on a session channel. Payload holds one of
// the *Payload types below, matching Type.
type Event struct {
	Payload   any
	SessionID string
	Type      EventType
}

// SubscribeSuccessPayload acknowledges a subscription with the current state
type SubscribeSuccessPayload struct {
	Messages []UnifiedMessage `json:"messages,omitempty"`
	State    SessionState     `json:"state"`
}

// StreamOutputPayload carries the full current snapshot of one message
type StreamOutputPayload struct {
	Message UnifiedMessage `json:"message"`
}

// MessageCompletePayload marks a message final
type MessageCompletePayload struct {
	MessageID string         `json:"messageId"`
	Metadata  *MetadataPatch `json:"metadata,omitempty"`
	Usage     *TokenUsage    `json:"usage,omitempty"`
}

// SessionUpdatedPayload is the authoritative session state
type SessionUpdatedPayload struct {
	ErrorMessage *string        `json:"error_message,omitempty"`
	Metadata     *MetadataPatch `json:"metadata,omitempty"`
	Name         *string        `json:"name,omitempty"`
	State        SessionState   `json:"state"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ErrorPayload reports a failure to subscribers
type ErrorPayload struct {
	Details string `json:"details,omitempty"`
	Message string `json:"message"`
}

// NewPayload returns an empty payload value for an event type, used by decoders
func NewPayload(t EventType) (any, error) {
	switch t {
	case EventSubscribeSuccess:
		return &SubscribeSuccessPayload{}, nil
	case EventStreamOutput:
		return &StreamOutputPayload{}, nil
	case EventMessageComplete:
		return &MessageCompletePayload{}, nil
	case EventSessionUpdated:
		return &SessionUpdatedPayload{}, nil
	case EventError:
		return &ErrorPayload{}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", t)
}

// ErrorEvent builds an error event for a session
func ErrorEvent(sessionID, message, details string) Event {
	return Event{
		Payload:   ErrorPayload{Details: details, Message: message},
		SessionID: sessionID,
		Type:      EventError,
	}
}
