package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renato0307/sessiond/internal/domain"
)

func TestSubscription_AppliesEventsInOrder(t *testing.T) {
	events := make(chan domain.Event, 8)
	var (
		mu          sync.Mutex
		seen        []domain.EventType
		invalidated []string
	)
	sub := NewSubscription("s1", events,
		OnChange(func(_ SessionView, ev domain.Event) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, ev.Type)
		}),
		OnInvalidate(func(id string) {
			mu.Lock()
			defer mu.Unlock()
			invalidated = append(invalidated, id)
		}),
	)
	sub.Start()
	sub.Start()

	events <- domain.Event{Type: domain.EventSubscribeSuccess, SessionID: "s1", Payload: domain.SubscribeSuccessPayload{State: domain.StateIdle}}
	events <- streamOutput("M", "one")
	events <- streamOutput("M", "one", "two")
	events <- domain.Event{Type: domain.EventMessageComplete, SessionID: "s1", Payload: domain.MessageCompletePayload{MessageID: "M"}}
	close(events)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop after the stream closed")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.EventType{
		domain.EventSubscribeSuccess,
		domain.EventStreamOutput,
		domain.EventStreamOutput,
		domain.EventMessageComplete,
	}, seen)
	assert.Equal(t, []string{"s1"}, invalidated)

	view := sub.View()
	assert.Equal(t, LoadingStateLoaded, view.LoadingState)
	require.Len(t, view.Messages, 1)
	assert.Len(t, view.Messages[0].Content, 2)
	assert.False(t, view.Messages[0].IsStreaming)
}

func TestSubscription_IgnoresOtherSessions(t *testing.T) {
	events := make(chan domain.Event, 2)
	sub := NewSubscription("s1", events)
	sub.Start()

	other := streamOutput("X", "not mine")
	other.SessionID = "s2"
	events <- other
	close(events)
	<-sub.Done()

	assert.Empty(t, sub.View().Messages)
}

func TestSubscription_StopWithoutStart(t *testing.T) {
	sub := NewSubscription("s1", make(chan domain.Event))
	sub.Stop()
	sub.Stop()
}

func TestSubscription_StopEndsDispatch(t *testing.T) {
	events := make(chan domain.Event)
	sub := NewSubscription("s1", events)
	sub.Start()
	sub.Stop()

	select {
	case <-sub.Done():
	default:
		t.Fatal("done not closed after Stop")
	}
}

func TestSubscription_OptimisticMessage(t *testing.T) {
	sub := NewSubscription("s1", make(chan domain.Event))
	id := sub.AddOptimisticUserMessage("hi")

	view := sub.View()
	require.Len(t, view.Messages, 1)
	assert.Equal(t, id, view.Messages[0].ID)
	assert.True(t, view.IsStreaming)
}
