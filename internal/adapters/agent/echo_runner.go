package agent

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/ports"
)

// DefaultEchoDelay is the pause between streamed words
const DefaultEchoDelay = 50 * time.Millisecond

// EchoRunner is a local development agent. It streams the user's text back
// one word at a time, each snapshot carrying the full text so far.
type EchoRunner struct {
	delay time.Duration
}

// Verify interface compliance at compile time
var _ ports.AgentRunner = (*EchoRunner)(nil)

// NewEchoRunner creates a new EchoRunner
func NewEchoRunner(delay time.Duration) *EchoRunner {
	if delay < 0 {
		delay = 0
	}
	return &EchoRunner{delay: delay}
}

// Run implements ports.AgentRunner
func (r *EchoRunner) Run(ctx context.Context, req ports.AgentRequest, stream ports.AgentStream) error {
	words := strings.Fields(req.Text)
	if len(words) == 0 {
		words = []string{"(empty message)"}
	}

	msg := domain.UnifiedMessage{ID: uuid.NewString(), Role: domain.RoleAssistant}
	logging.Logger.Debug("Echo run", "session_id", req.Session.ID, "message_id", msg.ID, "words", len(words))

	for i := range words {
		if err := r.wait(ctx); err != nil {
			return err
		}
		msg.Content = []domain.ContentBlock{domain.TextBlock(strings.Join(words[:i+1], " "))}
		msg.IsStreaming = true
		stream.Snapshot(msg)
	}

	if len(req.Attachments) > 0 {
		names := make([]string, 0, len(req.Attachments))
		for _, a := range req.Attachments {
			names = append(names, a.Name)
		}
		msg.Content = append(msg.Content, domain.TextBlock("attachments: "+strings.Join(names, ", ")))
		stream.Snapshot(msg)
	}

	stream.Complete(msg.ID, &domain.TokenUsage{
		InputTokens:  utf8.RuneCountInString(req.Text),
		OutputTokens: len(words),
	})
	return nil
}

func (r *EchoRunner) wait(ctx context.Context) error {
	if r.delay == 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
