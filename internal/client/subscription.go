package client

import (
	"sync"

	"github.com/renato0307/sessiond/internal/domain"
)

// Subscription applies one session's events to a SessionView in arrival
// order, from Start until Stop or until the event stream closes.
type Subscription struct {
	done         chan struct{}
	events       <-chan domain.Event
	mu           sync.Mutex
	onChange     func(SessionView, domain.Event)
	onInvalidate func(sessionID string)
	started      bool
	stop         chan struct{}
	stopOnce     sync.Once
	view         *SessionView
}

// Option configures a Subscription
type Option func(*Subscription)

// OnChange is called after every applied event with a copy of the view
func OnChange(fn func(SessionView, domain.Event)) Option {
	return func(s *Subscription) { s.onChange = fn }
}

// OnInvalidate is called when a completed message should refresh cached session lists
func OnInvalidate(fn func(sessionID string)) Option {
	return func(s *Subscription) { s.onInvalidate = fn }
}

// NewSubscription creates a subscription for sessionID reading from events.
// Events addressed to other sessions are ignored.
func NewSubscription(sessionID string, events <-chan domain.Event, opts ...Option) *Subscription {
	s := &Subscription{
		done:   make(chan struct{}),
		events: events,
		stop:   make(chan struct{}),
		view:   NewSessionView(sessionID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins dispatching events. Calling it twice has no effect.
func (s *Subscription) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.loop()
}

// Stop ends dispatching and waits for the handler in flight to return
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

// Done is closed once the subscription stops dispatching
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// View returns a copy of the current view
func (s *Subscription) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Clone()
}

// AddOptimisticUserMessage records a locally sent message in the view
func (s *Subscription) AddOptimisticUserMessage(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.AddOptimisticUserMessage(text)
}

func (s *Subscription) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			s.dispatch(ev)
		}
	}
}

func (s *Subscription) dispatch(ev domain.Event) {
	s.mu.Lock()
	if ev.SessionID != "" && ev.SessionID != s.view.SessionID {
		s.mu.Unlock()
		return
	}
	invalidate := s.view.Apply(ev)
	view := s.view.Clone()
	s.mu.Unlock()

	if invalidate && s.onInvalidate != nil {
		s.onInvalidate(view.SessionID)
	}
	if s.onChange != nil {
		s.onChange(view, ev)
	}
}
