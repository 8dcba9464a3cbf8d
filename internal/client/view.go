// Package client holds the client side of the live session protocol: a
// reducer folding channel events into a SessionView, and a Subscription
// that drives it from an ordered event stream.
package client

import (
	"github.com/google/uuid"

	"github.com/renato0307/sessiond/internal/domain"
)

// LoadingState tracks whether the initial subscribe has been acknowledged
type LoadingState string

const (
	LoadingStateLoaded  LoadingState = "loaded"
	LoadingStateLoading LoadingState = "loading"
)

// unknownError is shown when the server reports an error state without a message
const unknownError = "unknown error"

// SessionView is the client's picture of one session
type SessionView struct {
	Error              string
	IsStreaming        bool
	LoadingState       LoadingState
	Messages           []domain.UnifiedMessage
	Metadata           domain.SessionMetadata
	Name               string
	SessionID          string
	State              domain.SessionState
	StreamingMessageID string

	// completed holds ids finalized by message_complete; their content no longer changes
	completed map[string]bool
}

// NewSessionView creates an empty view waiting for subscribe_success
func NewSessionView(sessionID string) *SessionView {
	return &SessionView{
		completed:    make(map[string]bool),
		LoadingState: LoadingStateLoading,
		SessionID:    sessionID,
		State:        domain.StateIdle,
	}
}

// Apply folds one event into the view. It reports whether cached session
// lists should be invalidated.
func (v *SessionView) Apply(ev domain.Event) bool {
	switch p := ev.Payload.(type) {
	case domain.SubscribeSuccessPayload:
		v.applySubscribeSuccess(p)
	case domain.StreamOutputPayload:
		v.applyStreamOutput(p)
	case domain.MessageCompletePayload:
		v.applyMessageComplete(p)
		return true
	case domain.SessionUpdatedPayload:
		v.applySessionUpdated(p)
	case domain.ErrorPayload:
		v.applyError(p)
	}
	return false
}

// AddOptimisticUserMessage shows a sent message before the server confirms
// it. The next session_updated overrides the streaming flag.
func (v *SessionView) AddOptimisticUserMessage(text string) string {
	id := "local-" + uuid.NewString()
	v.Messages = append(v.Messages, domain.UnifiedMessage{
		Content: []domain.ContentBlock{domain.TextBlock(text)},
		ID:      id,
		Role:    domain.RoleUser,
	})
	v.IsStreaming = true
	v.Error = ""
	return id
}

// Clone returns a copy that shares nothing mutable with v
func (v *SessionView) Clone() SessionView {
	c := *v
	c.completed = make(map[string]bool, len(v.completed))
	for id := range v.completed {
		c.completed[id] = true
	}
	c.Messages = make([]domain.UnifiedMessage, len(v.Messages))
	for i, m := range v.Messages {
		c.Messages[i] = m.Clone()
	}
	return c
}

func (v *SessionView) applySubscribeSuccess(p domain.SubscribeSuccessPayload) {
	v.LoadingState = LoadingStateLoaded
	v.State = p.State
	v.IsStreaming = p.State == domain.StateWorking
	if p.Messages != nil {
		v.Messages = make([]domain.UnifiedMessage, len(p.Messages))
		for i, m := range p.Messages {
			v.Messages[i] = m.Clone()
		}
	}
}

// applyStreamOutput replaces the message content with the snapshot; the
// latest snapshot always wins until the message is completed
func (v *SessionView) applyStreamOutput(p domain.StreamOutputPayload) {
	if v.completed[p.Message.ID] {
		return
	}
	msg := p.Message.Clone()
	v.StreamingMessageID = msg.ID

	if i := v.indexOf(msg.ID); i >= 0 {
		v.Messages[i].Content = msg.Content
		v.Messages[i].IsStreaming = true
		return
	}
	msg.IsStreaming = true
	v.Messages = append(v.Messages, msg)
}

func (v *SessionView) applyMessageComplete(p domain.MessageCompletePayload) {
	if p.Metadata != nil {
		v.Metadata = v.Metadata.Apply(p.Metadata)
	}
	if p.MessageID != "" {
		v.markCompleted(p.MessageID)
	}

	if p.Usage == nil {
		v.finalize()
		return
	}

	i := v.indexOf(p.MessageID)
	if i < 0 {
		i = v.lastIndexOfRole(domain.RoleAssistant)
	}
	if i < 0 {
		v.finalize()
		return
	}
	v.markCompleted(v.Messages[i].ID)
	usage := *p.Usage
	v.Messages[i].Usage = &usage
	v.Messages[i].IsStreaming = false
	if v.StreamingMessageID == v.Messages[i].ID {
		v.StreamingMessageID = ""
	}
}

// finalize turns every streaming flag off and completes the messages that were streaming
func (v *SessionView) finalize() {
	for i := range v.Messages {
		if v.Messages[i].IsStreaming {
			v.markCompleted(v.Messages[i].ID)
		}
		v.Messages[i].IsStreaming = false
	}
	v.IsStreaming = false
	v.StreamingMessageID = ""
}

func (v *SessionView) applySessionUpdated(p domain.SessionUpdatedPayload) {
	v.State = p.State
	switch p.State {
	case domain.StateError:
		v.IsStreaming = false
		v.Error = unknownError
		if p.ErrorMessage != nil && *p.ErrorMessage != "" {
			v.Error = *p.ErrorMessage
		}
	case domain.StateIdle:
		v.IsStreaming = false
		v.Error = ""
	case domain.StateWorking:
		v.IsStreaming = true
		v.Error = ""
	}

	if p.Metadata != nil {
		v.Metadata = v.Metadata.Apply(p.Metadata)
	}
	if p.Name != nil {
		v.Name = *p.Name
	}
}

// applyError keeps the failure visible in the transcript as well as in Error
func (v *SessionView) applyError(p domain.ErrorPayload) {
	v.Messages = append(v.Messages, domain.UnifiedMessage{
		Content: []domain.ContentBlock{domain.TextBlock(p.Message)},
		ID:      "error-" + uuid.NewString(),
		IsError: true,
		Role:    domain.RoleSystem,
	})
	v.Error = p.Message
}

func (v *SessionView) markCompleted(id string) {
	if v.completed == nil {
		v.completed = make(map[string]bool)
	}
	v.completed[id] = true
}

func (v *SessionView) indexOf(id string) int {
	for i := range v.Messages {
		if v.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (v *SessionView) lastIndexOfRole(role string) int {
	for i := len(v.Messages) - 1; i >= 0; i-- {
		if v.Messages[i].Role == role {
			return i
		}
	}
	return -1
}
