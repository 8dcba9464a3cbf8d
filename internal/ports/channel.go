package ports

import (
	"context"

	"github.com/renato0307/sessiond/internal/domain"
)

// Subscriber receives events published on one channel, in publish order.
// Events is closed when the subscription ends.
type Subscriber interface {
	Channel() string
	Events() <-chan domain.Event
	Close()
}

// ChannelTransport addresses all current subscribers of a named channel
type ChannelTransport interface {
	Publish(channel string, event domain.Event)
	Subscribe(channel string) Subscriber
	SubscriberCount(channel string) int
}

// AgentStream receives output from a running agent
type AgentStream interface {
	// Snapshot delivers the full current content of an in-progress message
	Snapshot(message domain.UnifiedMessage)
	// Complete marks a message final
	Complete(messageID string, usage *domain.TokenUsage)
}

// AgentRequest is one user turn handed to an agent
type AgentRequest struct {
	Attachments []domain.Attachment
	Config      map[string]any
	Session     domain.Session
	Text        string
}

// AgentRunner runs one turn of an agent conversation. It blocks until the
// turn finishes, ctx is cancelled, or the agent fails.
type AgentRunner interface {
	Run(ctx context.Context, req AgentRequest, stream AgentStream) error
}

// ReplyFunc delivers an event to the connection that sent a command only.
// Implementations must not block.
type ReplyFunc func(domain.Event)

// SessionChannel is the command side of the live session protocol
type SessionChannel interface {
	// Subscribe attaches a subscriber to the session channel and returns it
	// with the subscribe_success event
	Subscribe(ctx context.Context, sessionID string) (Subscriber, domain.Event, error)
	// Handle processes send_message and cancel
	Handle(ctx context.Context, cmd domain.Command, reply ReplyFunc)
}
