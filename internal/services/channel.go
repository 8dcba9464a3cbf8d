package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/ports"
)

const (
	// DefaultActorIdleTTL is how long an actor with no run and no subscribers lives on
	DefaultActorIdleTTL = time.Minute

	actorInboxSize = 64
)

var (
	// ErrChannelClosed is returned once the ChannelService has been closed
	ErrChannelClosed = errors.New("channel service closed")

	errActorRetired = errors.New("session actor retired")
)

// channelStore is the slice of the session repository the channel server needs
type channelStore interface {
	ports.SessionMessageStore
	ports.SessionReader
	ports.SessionStateUpdater
}

// Verify interface compliance at compile time
var _ ports.SessionChannel = (*ChannelService)(nil)

// ChannelService runs one actor goroutine per session. The actor owns the
// session's live state and is the only publisher on its channel.
type ChannelService struct {
	actors    map[string]*sessionActor
	cancel    context.CancelFunc
	closed    bool
	ctx       context.Context
	idleTTL   time.Duration
	mu        sync.Mutex
	runner    ports.AgentRunner
	sessions  channelStore
	transport ports.ChannelTransport
	wg        sync.WaitGroup
}

// NewChannelService creates a new ChannelService
func NewChannelService(sessions channelStore, transport ports.ChannelTransport, runner ports.AgentRunner) *ChannelService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChannelService{
		actors:    make(map[string]*sessionActor),
		cancel:    cancel,
		ctx:       ctx,
		idleTTL:   DefaultActorIdleTTL,
		runner:    runner,
		sessions:  sessions,
		transport: transport,
	}
}

// Subscribe attaches a new subscriber to the session channel and returns it
// with the subscribe_success event describing the current state. The two are
// taken together on the actor, so no event falls between them.
func (s *ChannelService) Subscribe(ctx context.Context, sessionID string) (ports.Subscriber, domain.Event, error) {
	reply := make(chan subscribeResult, 1)
	if err := s.deliver(ctx, sessionID, subscribeMsg{reply: reply}); err != nil {
		return nil, domain.Event{}, err
	}

	select {
	case res := <-reply:
		return res.subscriber, res.event, res.err
	case <-ctx.Done():
		return nil, domain.Event{}, ctx.Err()
	case <-s.ctx.Done():
		return nil, domain.Event{}, ErrChannelClosed
	}
}

// Handle processes send_message and cancel commands. Failures that concern
// only the sender are passed to reply.
func (s *ChannelService) Handle(ctx context.Context, cmd domain.Command, reply ports.ReplyFunc) {
	var msg actorMsg
	switch cmd.Type {
	case domain.CommandSendMessage:
		msg = sendMsg{cmd: cmd, reply: reply}
	case domain.CommandCancel:
		msg = cancelMsg{}
	default:
		reply(domain.ErrorEvent(cmd.SessionID, "unknown command", string(cmd.Type)))
		return
	}

	if err := s.deliver(ctx, cmd.SessionID, msg); err != nil {
		reply(errorEventFor(cmd.SessionID, err))
	}
}

// Close cancels every run, stops the actors and waits for them
func (s *ChannelService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// deliver enqueues msg on the session's actor. An actor that retired after
// lookup is replaced by a fresh one.
func (s *ChannelService) deliver(ctx context.Context, sessionID string, msg actorMsg) error {
	for {
		actor, err := s.actor(ctx, sessionID)
		if err != nil {
			return err
		}
		err = actor.enqueue(ctx, msg)
		if !errors.Is(err, errActorRetired) {
			return err
		}
	}
}

// retire removes an idle actor that has no run, no subscribers and nothing
// queued. Called from the actor's own loop.
func (s *ChannelService) retire(a *sessionActor) bool {
	if a.runCancel != nil || s.transport.SubscriberCount(a.channel) > 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending > 0 {
		return false
	}
	a.retired = true
	if s.actors[a.session.ID] == a {
		delete(s.actors, a.session.ID)
	}
	return true
}

// actor returns the session's actor, starting it on first use
func (s *ChannelService) actor(ctx context.Context, sessionID string) (*sessionActor, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrChannelClosed
	}
	if a, ok := s.actors[sessionID]; ok {
		s.mu.Unlock()
		return a, nil
	}
	s.mu.Unlock()

	session, err := s.sessions.FindUnique(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrChannelClosed
	}
	if a, ok := s.actors[sessionID]; ok {
		return a, nil
	}

	a := &sessionActor{
		channel:   domain.ChannelName(sessionID),
		inbox:     make(chan actorMsg, actorInboxSize),
		service:   s,
		session:   *session,
		snapshots: make(map[string]domain.UnifiedMessage),
	}
	s.actors[sessionID] = a
	s.wg.Add(1)
	go a.loop()

	logging.Logger.Debug("Session actor started", "session_id", sessionID)
	return a, nil
}

func newMessageID() string {
	return uuid.NewString()
}

func errorEventFor(sessionID string, err error) domain.Event {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return domain.ErrorEvent(sessionID, domain.ErrSessionNotFound.Error(), "")
	case errors.Is(err, domain.ErrSessionBusy):
		return domain.ErrorEvent(sessionID, domain.ErrSessionBusy.Error(), "")
	}
	return domain.ErrorEvent(sessionID, "internal error", err.Error())
}

type actorMsg any

type subscribeMsg struct {
	reply chan subscribeResult
}

type subscribeResult struct {
	err        error
	event      domain.Event
	subscriber ports.Subscriber
}

type sendMsg struct {
	cmd   domain.Command
	reply ports.ReplyFunc
}

type cancelMsg struct{}

type snapshotMsg struct {
	message domain.UnifiedMessage
	run     int
}

type completeMsg struct {
	messageID string
	run       int
	usage     *domain.TokenUsage
}

type runDoneMsg struct {
	err error
	run int
}

// sessionActor state is only touched from loop, except pending and
// retired which are guarded by mu
type sessionActor struct {
	channel   string
	completed map[string]bool
	inbox     chan actorMsg
	mu        sync.Mutex
	pending   int
	retired   bool
	run       int
	runCancel context.CancelFunc
	service   *ChannelService
	session   domain.Session
	snapshots map[string]domain.UnifiedMessage
}

// enqueue fails with errActorRetired once the actor has stopped. A message
// counted in pending keeps the actor from retiring until loop receives it.
func (a *sessionActor) enqueue(ctx context.Context, msg actorMsg) error {
	a.mu.Lock()
	if a.retired {
		a.mu.Unlock()
		return errActorRetired
	}
	a.pending++
	a.mu.Unlock()

	select {
	case a.inbox <- msg:
		return nil
	case <-ctx.Done():
		a.dequeued()
		return ctx.Err()
	case <-a.service.ctx.Done():
		a.dequeued()
		return ErrChannelClosed
	}
}

func (a *sessionActor) dequeued() {
	a.mu.Lock()
	a.pending--
	a.mu.Unlock()
}

func (a *sessionActor) loop() {
	defer a.service.wg.Done()

	// A row left working by a previous process has no run behind it
	if a.session.State == domain.StateWorking {
		logging.Logger.Info("Resetting stale working session", "session_id", a.session.ID)
		a.setState(domain.StateIdle, "")
	}

	ttl := a.service.idleTTL
	idle := time.NewTicker(max(ttl/2, time.Millisecond))
	defer idle.Stop()
	lastActive := time.Now()

	for {
		select {
		case <-a.service.ctx.Done():
			a.shutdown()
			return
		case msg := <-a.inbox:
			a.dequeued()
			a.handle(msg)
			lastActive = time.Now()
		case <-idle.C:
			if time.Since(lastActive) >= ttl && a.service.retire(a) {
				logging.Logger.Debug("Session actor stopped", "session_id", a.session.ID)
				return
			}
		}
	}
}

func (a *sessionActor) handle(msg actorMsg) {
	switch m := msg.(type) {
	case subscribeMsg:
		m.reply <- a.subscribe()
	case sendMsg:
		a.send(m.cmd, m.reply)
	case cancelMsg:
		a.cancelRun()
	case snapshotMsg:
		a.snapshot(m)
	case completeMsg:
		a.complete(m)
	case runDoneMsg:
		a.runDone(m)
	}
}

func (a *sessionActor) subscribe() subscribeResult {
	messages, err := a.service.sessions.ListMessages(a.service.ctx, a.session.ID)
	if err != nil {
		return subscribeResult{err: fmt.Errorf("failed to load messages: %w", err)}
	}

	sub := a.service.transport.Subscribe(a.channel)
	return subscribeResult{
		event: domain.Event{
			Payload:   domain.SubscribeSuccessPayload{Messages: messages, State: a.session.State},
			SessionID: a.session.ID,
			Type:      domain.EventSubscribeSuccess,
		},
		subscriber: sub,
	}
}

func (a *sessionActor) send(cmd domain.Command, reply ports.ReplyFunc) {
	if a.session.State == domain.StateWorking {
		logging.Logger.Debug("Rejecting send on busy session", "session_id", a.session.ID)
		reply(domain.ErrorEvent(a.session.ID, domain.ErrSessionBusy.Error(), ""))
		return
	}

	user := domain.UnifiedMessage{
		Content: []domain.ContentBlock{domain.TextBlock(cmd.Text)},
		ID:      newMessageID(),
		Role:    domain.RoleUser,
	}
	if err := a.service.sessions.UpsertMessage(a.service.ctx, a.session.ID, user); err != nil {
		logging.Logger.Error("Failed to store user message", "session_id", a.session.ID, "error", err)
		reply(domain.ErrorEvent(a.session.ID, "failed to store message", err.Error()))
		return
	}

	a.setState(domain.StateWorking, "")

	a.run++
	a.completed = make(map[string]bool)
	a.snapshots = make(map[string]domain.UnifiedMessage)
	runCtx, cancel := context.WithCancel(a.service.ctx)
	a.runCancel = cancel

	req := ports.AgentRequest{
		Attachments: cmd.Attachments,
		Config:      cmd.Config,
		Session:     a.session,
		Text:        cmd.Text,
	}
	stream := &actorStream{actor: a, run: a.run}

	a.service.wg.Add(1)
	go func(run int) {
		defer a.service.wg.Done()
		err := a.service.runner.Run(runCtx, req, stream)
		_ = a.enqueue(context.Background(), runDoneMsg{err: err, run: run})
	}(a.run)

	logging.Logger.Info("Agent run started", "session_id", a.session.ID, "run", a.run)
}

func (a *sessionActor) snapshot(m snapshotMsg) {
	if m.run != a.run || a.runCancel == nil || a.completed[m.message.ID] {
		logging.Logger.Debug("Dropping late snapshot", "session_id", a.session.ID, "message_id", m.message.ID)
		return
	}

	msg := m.message.Clone()
	msg.IsStreaming = true
	a.snapshots[msg.ID] = msg
	if err := a.service.sessions.UpsertMessage(a.service.ctx, a.session.ID, msg); err != nil {
		logging.Logger.Error("Failed to store snapshot", "session_id", a.session.ID, "message_id", msg.ID, "error", err)
	}

	a.publish(domain.EventStreamOutput, domain.StreamOutputPayload{Message: msg})
}

func (a *sessionActor) complete(m completeMsg) {
	if m.run != a.run || a.runCancel == nil || a.completed[m.messageID] {
		return
	}
	a.completed[m.messageID] = true

	if msg, ok := a.snapshots[m.messageID]; ok {
		msg.IsStreaming = false
		msg.Usage = m.usage
		if err := a.service.sessions.UpsertMessage(a.service.ctx, a.session.ID, msg); err != nil {
			logging.Logger.Error("Failed to store message", "session_id", a.session.ID, "message_id", msg.ID, "error", err)
		}
		delete(a.snapshots, m.messageID)
	}

	a.publish(domain.EventMessageComplete, domain.MessageCompletePayload{MessageID: m.messageID, Usage: m.usage})
}

func (a *sessionActor) runDone(m runDoneMsg) {
	if m.run != a.run || a.runCancel == nil {
		return
	}
	a.runCancel()
	a.runCancel = nil
	a.finalizeSnapshots()

	if m.err != nil && !errors.Is(m.err, context.Canceled) {
		logging.Logger.Warn("Agent run failed", "session_id", a.session.ID, "error", m.err)
		a.publish(domain.EventError, domain.ErrorPayload{Message: m.err.Error()})
		a.setState(domain.StateError, m.err.Error())
		return
	}

	logging.Logger.Info("Agent run finished", "session_id", a.session.ID, "run", m.run)
	a.setState(domain.StateIdle, "")
}

func (a *sessionActor) cancelRun() {
	if a.runCancel == nil {
		return
	}
	a.runCancel()
	a.runCancel = nil
	a.run++
	a.finalizeSnapshots()

	logging.Logger.Info("Agent run cancelled", "session_id", a.session.ID)
	a.setState(domain.StateIdle, "")
}

func (a *sessionActor) shutdown() {
	if a.runCancel != nil {
		a.runCancel()
		a.runCancel = nil
	}
	if a.session.State != domain.StateWorking {
		return
	}
	if _, err := a.service.sessions.UpdateState(context.Background(), a.session.ID, domain.StateIdle, ""); err != nil {
		logging.Logger.Warn("Failed to reset session on shutdown", "session_id", a.session.ID, "error", err)
	}
}

// finalizeSnapshots stores messages the run never completed as final
func (a *sessionActor) finalizeSnapshots() {
	for id, msg := range a.snapshots {
		msg.IsStreaming = false
		if err := a.service.sessions.UpsertMessage(a.service.ctx, a.session.ID, msg); err != nil {
			logging.Logger.Warn("Failed to finalize message", "session_id", a.session.ID, "message_id", id, "error", err)
		}
	}
	a.snapshots = make(map[string]domain.UnifiedMessage)
}

// setState persists the new state and publishes session_updated
func (a *sessionActor) setState(state domain.SessionState, errorMessage string) {
	a.session.State = state
	a.session.ErrorMessage = errorMessage

	updated, err := a.service.sessions.UpdateState(a.service.ctx, a.session.ID, state, errorMessage)
	if err != nil {
		logging.Logger.Error("Failed to store session state", "session_id", a.session.ID, "state", state, "error", err)
	} else {
		a.session = *updated
	}

	name := a.session.Name
	payload := domain.SessionUpdatedPayload{
		Metadata:  a.session.Metadata.Patch(),
		Name:      &name,
		State:     state,
		UpdatedAt: a.session.UpdatedAt,
	}
	if state == domain.StateError {
		payload.ErrorMessage = &errorMessage
	}
	a.publish(domain.EventSessionUpdated, payload)
}

func (a *sessionActor) publish(eventType domain.EventType, payload any) {
	a.service.transport.Publish(a.channel, domain.Event{
		Payload:   payload,
		SessionID: a.session.ID,
		Type:      eventType,
	})
}

// actorStream forwards runner output into the actor inbox
type actorStream struct {
	actor *sessionActor
	run   int
}

func (s *actorStream) Snapshot(message domain.UnifiedMessage) {
	_ = s.actor.enqueue(context.Background(), snapshotMsg{message: message.Clone(), run: s.run})
}

func (s *actorStream) Complete(messageID string, usage *domain.TokenUsage) {
	_ = s.actor.enqueue(context.Background(), completeMsg{messageID: messageID, run: s.run, usage: usage})
}
