package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/renato0307/sessiond/internal/adapters/channel"
	"github.com/renato0307/sessiond/internal/adapters/storage"
	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/ports"
	portsmocks "github.com/renato0307/sessiond/internal/ports/mocks"
)

const testSessionID = "3f1ad7a2-5c2e-4b8e-9c41-7d0f6b2e9a10"

type channelFixture struct {
	repo    *storage.SQLiteRepository
	runner  *portsmocks.MockAgentRunner
	service *ChannelService
}

func newChannelFixture(t *testing.T) *channelFixture {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.Create(context.Background(), domain.Session{
		ID:        testSessionID,
		Name:      "test session",
		ProjectID: "p1",
		State:     domain.StateIdle,
		UserID:    "local",
	}))

	runner := portsmocks.NewMockAgentRunner(t)
	service := NewChannelService(repo, channel.NewHub(), runner)
	t.Cleanup(service.Close)

	return &channelFixture{repo: repo, runner: runner, service: service}
}

func (f *channelFixture) subscribe(t *testing.T) ports.Subscriber {
	t.Helper()
	sub, ev, err := f.service.Subscribe(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Equal(t, domain.EventSubscribeSuccess, ev.Type)
	return sub
}

func nextEvent(t *testing.T, sub ports.Subscriber) domain.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscriber closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.Event{}
}

func requireState(t *testing.T, ev domain.Event, state domain.SessionState) domain.SessionUpdatedPayload {
	t.Helper()
	require.Equal(t, domain.EventSessionUpdated, ev.Type)
	payload, ok := ev.Payload.(domain.SessionUpdatedPayload)
	require.True(t, ok)
	require.Equal(t, state, payload.State)
	return payload
}

func sendCommand(text string) domain.Command {
	return domain.Command{Type: domain.CommandSendMessage, SessionID: testSessionID, Text: text}
}

func replies() (ports.ReplyFunc, <-chan domain.Event) {
	ch := make(chan domain.Event, 16)
	return func(ev domain.Event) { ch <- ev }, ch
}

func assistantText(id, text string) domain.UnifiedMessage {
	return domain.UnifiedMessage{ID: id, Role: domain.RoleAssistant, Content: []domain.ContentBlock{domain.TextBlock(text)}}
}

func TestChannelService_SendStreamsAndCompletes(t *testing.T) {
	f := newChannelFixture(t)
	sub := f.subscribe(t)

	usage := &domain.TokenUsage{InputTokens: 3, OutputTokens: 4}
	f.runner.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, req ports.AgentRequest, stream ports.AgentStream) error {
			assert.Equal(t, "hello", req.Text)
			assert.Equal(t, testSessionID, req.Session.ID)
			stream.Snapshot(assistantText("m1", "hel"))
			stream.Snapshot(assistantText("m1", "hello"))
			stream.Complete("m1", usage)
			return nil
		})

	reply, replyCh := replies()
	f.service.Handle(context.Background(), sendCommand("hello"), reply)

	requireState(t, nextEvent(t, sub), domain.StateWorking)

	ev := nextEvent(t, sub)
	require.Equal(t, domain.EventStreamOutput, ev.Type)
	assert.Equal(t, "hel", ev.Payload.(domain.StreamOutputPayload).Message.Content[0].Text)
	assert.True(t, ev.Payload.(domain.StreamOutputPayload).Message.IsStreaming)

	ev = nextEvent(t, sub)
	require.Equal(t, domain.EventStreamOutput, ev.Type)
	assert.Equal(t, "hello", ev.Payload.(domain.StreamOutputPayload).Message.Content[0].Text)

	ev = nextEvent(t, sub)
	require.Equal(t, domain.EventMessageComplete, ev.Type)
	complete := ev.Payload.(domain.MessageCompletePayload)
	assert.Equal(t, "m1", complete.MessageID)
	assert.Equal(t, usage, complete.Usage)

	idle := requireState(t, nextEvent(t, sub), domain.StateIdle)
	assert.Nil(t, idle.ErrorMessage)
	require.NotNil(t, idle.Name)
	assert.Equal(t, "test session", *idle.Name)
	assert.Empty(t, replyCh)

	messages, err := f.repo.ListMessages(context.Background(), testSessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	assert.Equal(t, "hello", messages[1].Content[0].Text)
	assert.False(t, messages[1].IsStreaming)

	// A new subscriber is seeded from the store
	_, ev, err = f.service.Subscribe(context.Background(), testSessionID)
	require.NoError(t, err)
	seeded := ev.Payload.(domain.SubscribeSuccessPayload)
	assert.Equal(t, domain.StateIdle, seeded.State)
	assert.Len(t, seeded.Messages, 2)
}

func TestChannelService_FanOutToAllSubscribers(t *testing.T) {
	f := newChannelFixture(t)
	first := f.subscribe(t)
	second := f.subscribe(t)

	f.runner.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).Return(nil)

	reply, _ := replies()
	f.service.Handle(context.Background(), sendCommand("hi"), reply)

	for _, sub := range []ports.Subscriber{first, second} {
		requireState(t, nextEvent(t, sub), domain.StateWorking)
		requireState(t, nextEvent(t, sub), domain.StateIdle)
	}
}

func TestChannelService_BusySendRejected(t *testing.T) {
	f := newChannelFixture(t)
	sub := f.subscribe(t)

	release := make(chan struct{})
	f.runner.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, req ports.AgentRequest, stream ports.AgentStream) error {
			<-release
			return nil
		}).Once()

	reply, replyCh := replies()
	f.service.Handle(context.Background(), sendCommand("first"), reply)
	f.service.Handle(context.Background(), sendCommand("second"), reply)

	requireState(t, nextEvent(t, sub), domain.StateWorking)

	select {
	case ev := <-replyCh:
		require.Equal(t, domain.EventError, ev.Type)
		assert.Equal(t, "session is busy", ev.Payload.(domain.ErrorPayload).Message)
	case <-time.After(5 * time.Second):
		t.Fatal("busy send was not rejected")
	}

	close(release)
	requireState(t, nextEvent(t, sub), domain.StateIdle)
}

func TestChannelService_CancelReturnsToIdle(t *testing.T) {
	f := newChannelFixture(t)
	sub := f.subscribe(t)

	f.runner.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, req ports.AgentRequest, stream ports.AgentStream) error {
			stream.Snapshot(assistantText("m1", "partial"))
			<-ctx.Done()
			stream.Snapshot(assistantText("m1", "partial after cancel"))
			return ctx.Err()
		})

	reply, replyCh := replies()
	f.service.Handle(context.Background(), sendCommand("go"), reply)

	requireState(t, nextEvent(t, sub), domain.StateWorking)
	require.Equal(t, domain.EventStreamOutput, nextEvent(t, sub).Type)

	f.service.Handle(context.Background(), domain.Command{Type: domain.CommandCancel, SessionID: testSessionID}, reply)
	requireState(t, nextEvent(t, sub), domain.StateIdle)

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event after cancel: %s", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Empty(t, replyCh)

	session, err := f.repo.FindUnique(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, session.State)
}

func TestChannelService_FailureEmitsErrorThenState(t *testing.T) {
	f := newChannelFixture(t)
	sub := f.subscribe(t)

	f.runner.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).Return(errors.New("boom"))

	reply, _ := replies()
	f.service.Handle(context.Background(), sendCommand("go"), reply)

	requireState(t, nextEvent(t, sub), domain.StateWorking)

	ev := nextEvent(t, sub)
	require.Equal(t, domain.EventError, ev.Type)
	assert.Equal(t, "boom", ev.Payload.(domain.ErrorPayload).Message)

	failed := requireState(t, nextEvent(t, sub), domain.StateError)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "boom", *failed.ErrorMessage)

	session, err := f.repo.FindUnique(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateError, session.State)
	assert.Equal(t, "boom", session.ErrorMessage)
}

func TestChannelService_SendAfterErrorRecovers(t *testing.T) {
	f := newChannelFixture(t)
	sub := f.subscribe(t)

	f.runner.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).Return(errors.New("boom")).Once()
	f.runner.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	reply, _ := replies()
	f.service.Handle(context.Background(), sendCommand("one"), reply)
	requireState(t, nextEvent(t, sub), domain.StateWorking)
	require.Equal(t, domain.EventError, nextEvent(t, sub).Type)
	requireState(t, nextEvent(t, sub), domain.StateError)

	f.service.Handle(context.Background(), sendCommand("two"), reply)
	working := requireState(t, nextEvent(t, sub), domain.StateWorking)
	assert.Nil(t, working.ErrorMessage)
	requireState(t, nextEvent(t, sub), domain.StateIdle)
}

func TestChannelService_LateSnapshotDropped(t *testing.T) {
	f := newChannelFixture(t)
	sub := f.subscribe(t)

	f.runner.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, req ports.AgentRequest, stream ports.AgentStream) error {
			stream.Snapshot(assistantText("m1", "done"))
			stream.Complete("m1", nil)
			stream.Snapshot(assistantText("m1", "too late"))
			return nil
		})

	reply, _ := replies()
	f.service.Handle(context.Background(), sendCommand("go"), reply)

	requireState(t, nextEvent(t, sub), domain.StateWorking)
	assert.Equal(t, domain.EventStreamOutput, nextEvent(t, sub).Type)
	assert.Equal(t, domain.EventMessageComplete, nextEvent(t, sub).Type)
	requireState(t, nextEvent(t, sub), domain.StateIdle)
}

func TestChannelService_UnknownSession(t *testing.T) {
	f := newChannelFixture(t)

	_, _, err := f.service.Subscribe(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	reply, replyCh := replies()
	f.service.Handle(context.Background(), domain.Command{Type: domain.CommandSendMessage, SessionID: "missing"}, reply)
	ev := <-replyCh
	require.Equal(t, domain.EventError, ev.Type)
	assert.Equal(t, "session not found", ev.Payload.(domain.ErrorPayload).Message)
}

func TestChannelService_UnknownCommand(t *testing.T) {
	f := newChannelFixture(t)

	reply, replyCh := replies()
	f.service.Handle(context.Background(), domain.Command{Type: "explode", SessionID: testSessionID}, reply)
	ev := <-replyCh
	require.Equal(t, domain.EventError, ev.Type)
	assert.Equal(t, "unknown command", ev.Payload.(domain.ErrorPayload).Message)
}

func TestChannelService_StaleWorkingStateReset(t *testing.T) {
	f := newChannelFixture(t)
	_, err := f.repo.UpdateState(context.Background(), testSessionID, domain.StateWorking, "")
	require.NoError(t, err)

	_, ev, err := f.service.Subscribe(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, ev.Payload.(domain.SubscribeSuccessPayload).State)
}

func TestChannelService_CloseStopsRuns(t *testing.T) {
	f := newChannelFixture(t)
	sub := f.subscribe(t)

	stopped := make(chan struct{})
	f.runner.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, req ports.AgentRequest, stream ports.AgentStream) error {
			<-ctx.Done()
			close(stopped)
			return ctx.Err()
		})

	reply, replyCh := replies()
	f.service.Handle(context.Background(), sendCommand("go"), reply)
	requireState(t, nextEvent(t, sub), domain.StateWorking)

	f.service.Close()
	<-stopped

	session, err := f.repo.FindUnique(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, session.State)

	_, _, err = f.service.Subscribe(context.Background(), testSessionID)
	assert.ErrorIs(t, err, ErrChannelClosed)

	f.service.Handle(context.Background(), sendCommand("again"), reply)
	ev := <-replyCh
	assert.Equal(t, domain.EventError, ev.Type)
}

func (f *channelFixture) actorCount() int {
	f.service.mu.Lock()
	defer f.service.mu.Unlock()
	return len(f.service.actors)
}

func TestChannelService_IdleActorStopsAfterLastSubscriberLeaves(t *testing.T) {
	f := newChannelFixture(t)
	f.service.idleTTL = 20 * time.Millisecond

	sub := f.subscribe(t)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.actorCount(), "actor with a subscriber stays")

	sub.Close()
	require.Eventually(t, func() bool { return f.actorCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// The next use starts a fresh actor seeded from the store
	f.runner.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, req ports.AgentRequest, stream ports.AgentStream) error {
			stream.Snapshot(assistantText("m1", "back"))
			stream.Complete("m1", nil)
			return nil
		})
	sub = f.subscribe(t)
	defer sub.Close()
	reply, replyCh := replies()
	f.service.Handle(context.Background(), sendCommand("again"), reply)

	requireState(t, nextEvent(t, sub), domain.StateWorking)
	assert.Equal(t, domain.EventStreamOutput, nextEvent(t, sub).Type)
	assert.Equal(t, domain.EventMessageComplete, nextEvent(t, sub).Type)
	requireState(t, nextEvent(t, sub), domain.StateIdle)
	assert.Empty(t, replyCh)
}

func TestChannelService_ActorWithRunningAgentIsKept(t *testing.T) {
	f := newChannelFixture(t)
	f.service.idleTTL = 20 * time.Millisecond

	started := make(chan struct{})
	f.runner.EXPECT().Run(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, req ports.AgentRequest, stream ports.AgentStream) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})

	reply, _ := replies()
	f.service.Handle(context.Background(), sendCommand("long"), reply)
	<-started

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.actorCount())

	f.service.Handle(context.Background(), domain.Command{Type: domain.CommandCancel, SessionID: testSessionID}, reply)
	require.Eventually(t, func() bool { return f.actorCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	session, err := f.repo.FindUnique(context.Background(), testSessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateIdle, session.State)
}
