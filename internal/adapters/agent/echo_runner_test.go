package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/ports"
)

type recordingStream struct {
	completed []string
	mu        sync.Mutex
	snapshots []domain.UnifiedMessage
	usage     *domain.TokenUsage
}

func (s *recordingStream) Snapshot(msg domain.UnifiedMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, msg.Clone())
}

func (s *recordingStream) Complete(id string, usage *domain.TokenUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, id)
	s.usage = usage
}

func TestEchoRunner_StreamsFullSnapshots(t *testing.T) {
	stream := &recordingStream{}
	err := NewEchoRunner(0).Run(context.Background(), ports.AgentRequest{Text: "hello big world"}, stream)
	require.NoError(t, err)

	require.Len(t, stream.snapshots, 3)
	assert.Equal(t, "hello", stream.snapshots[0].Content[0].Text)
	assert.Equal(t, "hello big", stream.snapshots[1].Content[0].Text)
	assert.Equal(t, "hello big world", stream.snapshots[2].Content[0].Text)

	id := stream.snapshots[0].ID
	for _, s := range stream.snapshots {
		assert.Equal(t, id, s.ID, "every snapshot targets one message")
		assert.Equal(t, domain.RoleAssistant, s.Role)
	}

	require.Equal(t, []string{id}, stream.completed)
	require.NotNil(t, stream.usage)
	assert.Equal(t, 3, stream.usage.OutputTokens)
}

func TestEchoRunner_ListsAttachments(t *testing.T) {
	stream := &recordingStream{}
	req := ports.AgentRequest{Text: "see", Attachments: []domain.Attachment{{Name: "a.png"}, {Name: "b.txt"}}}
	require.NoError(t, NewEchoRunner(0).Run(context.Background(), req, stream))

	last := stream.snapshots[len(stream.snapshots)-1]
	require.Len(t, last.Content, 2)
	assert.Equal(t, "attachments: a.png, b.txt", last.Content[1].Text)
}

func TestEchoRunner_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream := &recordingStream{}

	done := make(chan error, 1)
	go func() {
		done <- NewEchoRunner(time.Hour).Run(ctx, ports.AgentRequest{Text: "never sent"}, stream)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("runner ignored cancellation")
	}
	assert.Empty(t, stream.completed)
}
