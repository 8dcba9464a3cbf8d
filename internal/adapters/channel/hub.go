package channel

import (
	"sync"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/ports"
)

// DefaultOutboxSize is the per-subscriber event buffer
const DefaultOutboxSize = 256

// Hub is an in-process ChannelTransport. Each subscriber owns a buffered
// outbox; a subscriber that falls behind is disconnected instead of
// receiving a stream with gaps.
type Hub struct {
	channels   map[string]map[*subscriber]struct{}
	mu         sync.Mutex
	outboxSize int
}

// Verify interface compliance at compile time
var _ ports.ChannelTransport = (*Hub)(nil)

// NewHub creates a new Hub with DefaultOutboxSize outboxes
func NewHub() *Hub {
	return NewHubWithOutbox(DefaultOutboxSize)
}

// NewHubWithOutbox creates a new Hub with the given outbox size
func NewHubWithOutbox(size int) *Hub {
	if size <= 0 {
		size = DefaultOutboxSize
	}
	return &Hub{
		channels:   make(map[string]map[*subscriber]struct{}),
		outboxSize: size,
	}
}

// Subscribe registers a new subscriber on channel
func (h *Hub) Subscribe(channel string) ports.Subscriber {
	sub := &subscriber{
		channel: channel,
		events:  make(chan domain.Event, h.outboxSize),
		hub:     h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*subscriber]struct{})
		h.channels[channel] = subs
	}
	subs[sub] = struct{}{}

	logging.Logger.Debug("Subscriber added", "channel", channel, "subscribers", len(subs))
	return sub
}

// Publish delivers event to every current subscriber of channel
func (h *Hub) Publish(channel string, event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.channels[channel] {
		select {
		case sub.events <- event:
		default:
			logging.Logger.Warn("Disconnecting slow subscriber",
				"channel", channel,
				"event", event.Type,
				"outbox", h.outboxSize)
			h.removeLocked(sub)
		}
	}
}

// SubscriberCount returns the number of subscribers on channel
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channel])
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.channels {
		for sub := range subs {
			h.removeLocked(sub)
		}
	}
}

// removeLocked closes sub's outbox. Must be called with h.mu held.
func (h *Hub) removeLocked(sub *subscriber) {
	subs, ok := h.channels[sub.channel]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.events)
	if len(subs) == 0 {
		delete(h.channels, sub.channel)
	}
}

type subscriber struct {
	channel string
	events  chan domain.Event
	hub     *Hub
}

func (s *subscriber) Channel() string { return s.channel }

func (s *subscriber) Events() <-chan domain.Event { return s.events }

// Close removes the subscriber. Safe to call more than once.
func (s *subscriber) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s)
}
