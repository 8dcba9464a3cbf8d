package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renato0307/sessiond/internal/domain"
)

func streamOutput(id string, texts ...string) domain.Event {
	blocks := make([]domain.ContentBlock, 0, len(texts))
	for _, text := range texts {
		blocks = append(blocks, domain.TextBlock(text))
	}
	return domain.Event{
		Type:      domain.EventStreamOutput,
		SessionID: "s1",
		Payload: domain.StreamOutputPayload{Message: domain.UnifiedMessage{
			ID:      id,
			Role:    domain.RoleAssistant,
			Content: blocks,
		}},
	}
}

func sessionUpdated(state domain.SessionState, errMsg *string) domain.Event {
	return domain.Event{
		Type:      domain.EventSessionUpdated,
		SessionID: "s1",
		Payload:   domain.SessionUpdatedPayload{State: state, ErrorMessage: errMsg},
	}
}

func TestApply_SnapshotsReplaceContent(t *testing.T) {
	view := NewSessionView("s1")

	view.Apply(streamOutput("M", "textBlock1"))
	view.Apply(streamOutput("M", "textBlock1", "textBlock2"))

	require.Len(t, view.Messages, 1)
	msg := view.Messages[0]
	assert.Equal(t, "M", msg.ID)
	require.Len(t, msg.Content, 2)
	assert.Equal(t, "textBlock1", msg.Content[0].Text)
	assert.Equal(t, "textBlock2", msg.Content[1].Text)
	assert.True(t, msg.IsStreaming)
	assert.Equal(t, "M", view.StreamingMessageID)
}

func TestApply_ShorterSnapshotStillWins(t *testing.T) {
	view := NewSessionView("s1")
	view.Apply(streamOutput("M", "a", "b"))
	view.Apply(streamOutput("M", "c"))

	require.Len(t, view.Messages[0].Content, 1)
	assert.Equal(t, "c", view.Messages[0].Content[0].Text)
}

func TestApply_ErrorStateWinsOverStreaming(t *testing.T) {
	boom := "boom"

	t.Run("update after snapshot", func(t *testing.T) {
		view := NewSessionView("s1")
		view.Apply(sessionUpdated(domain.StateWorking, nil))
		view.Apply(streamOutput("M", "partial"))
		require.True(t, view.IsStreaming)

		view.Apply(sessionUpdated(domain.StateError, &boom))
		assert.False(t, view.IsStreaming)
		assert.Equal(t, "boom", view.Error)
	})

	t.Run("snapshot after update", func(t *testing.T) {
		view := NewSessionView("s1")
		view.Apply(sessionUpdated(domain.StateWorking, nil))
		view.Apply(sessionUpdated(domain.StateError, &boom))
		view.Apply(streamOutput("M", "late"))

		assert.False(t, view.IsStreaming)
		assert.Equal(t, "boom", view.Error)
	})
}

func TestApply_SessionUpdatedStates(t *testing.T) {
	view := NewSessionView("s1")
	view.Error = "old"

	view.Apply(sessionUpdated(domain.StateWorking, nil))
	assert.True(t, view.IsStreaming)
	assert.Empty(t, view.Error)

	view.Apply(sessionUpdated(domain.StateError, nil))
	assert.False(t, view.IsStreaming)
	assert.Equal(t, unknownError, view.Error)

	view.Apply(sessionUpdated(domain.StateIdle, nil))
	assert.False(t, view.IsStreaming)
	assert.Empty(t, view.Error)
	assert.Equal(t, domain.StateIdle, view.State)
}

func TestApply_SessionUpdatedMergesMetadata(t *testing.T) {
	view := NewSessionView("s1")
	view.Metadata = domain.SessionMetadata{MessageCount: 2, TotalTokens: 10, FirstMessagePreview: "hi"}
	view.Name = "before"

	count := 5
	view.Apply(domain.Event{
		Type: domain.EventSessionUpdated,
		Payload: domain.SessionUpdatedPayload{
			State:    domain.StateIdle,
			Metadata: &domain.MetadataPatch{MessageCount: &count},
		},
	})

	assert.Equal(t, 5, view.Metadata.MessageCount)
	assert.Equal(t, 10, view.Metadata.TotalTokens)
	assert.Equal(t, "hi", view.Metadata.FirstMessagePreview)
	assert.Equal(t, "before", view.Name)

	name := "after"
	view.Apply(domain.Event{Type: domain.EventSessionUpdated, Payload: domain.SessionUpdatedPayload{State: domain.StateIdle, Name: &name}})
	assert.Equal(t, "after", view.Name)
}

func TestApply_MessageCompleteWithUsage(t *testing.T) {
	view := NewSessionView("s1")
	view.Apply(streamOutput("A1", "first"))
	view.Apply(streamOutput("A2", "second"))

	invalidate := view.Apply(domain.Event{
		Type:    domain.EventMessageComplete,
		Payload: domain.MessageCompletePayload{Usage: &domain.TokenUsage{OutputTokens: 7}},
	})

	assert.True(t, invalidate)
	require.NotNil(t, view.Messages[1].Usage)
	assert.Equal(t, 7, view.Messages[1].Usage.OutputTokens)
	assert.False(t, view.Messages[1].IsStreaming)
	assert.Nil(t, view.Messages[0].Usage)
}

func TestApply_MessageCompleteWithoutUsageFinalizes(t *testing.T) {
	view := NewSessionView("s1")
	view.Apply(sessionUpdated(domain.StateWorking, nil))
	view.Apply(streamOutput("A1", "one"))
	view.Apply(streamOutput("A2", "two"))

	invalidate := view.Apply(domain.Event{Type: domain.EventMessageComplete, Payload: domain.MessageCompletePayload{MessageID: "A2"}})

	assert.True(t, invalidate)
	assert.False(t, view.IsStreaming)
	assert.Empty(t, view.StreamingMessageID)
	for _, m := range view.Messages {
		assert.False(t, m.IsStreaming)
		assert.Nil(t, m.Usage)
	}
}

func TestApply_ErrorEventAppendsMessage(t *testing.T) {
	view := NewSessionView("s1")
	invalidate := view.Apply(domain.ErrorEvent("s1", "session is busy", ""))

	assert.False(t, invalidate)
	assert.Equal(t, "session is busy", view.Error)
	require.Len(t, view.Messages, 1)
	assert.True(t, view.Messages[0].IsError)
	assert.Equal(t, domain.RoleSystem, view.Messages[0].Role)
	assert.Equal(t, "session is busy", view.Messages[0].Content[0].Text)
}

func TestApply_SubscribeSuccessSeeds(t *testing.T) {
	view := NewSessionView("s1")
	assert.Equal(t, LoadingStateLoading, view.LoadingState)

	view.Apply(domain.Event{
		Type: domain.EventSubscribeSuccess,
		Payload: domain.SubscribeSuccessPayload{
			State:    domain.StateWorking,
			Messages: []domain.UnifiedMessage{{ID: "u1", Role: domain.RoleUser}},
		},
	})

	assert.Equal(t, LoadingStateLoaded, view.LoadingState)
	assert.True(t, view.IsStreaming)
	require.Len(t, view.Messages, 1)

	view.Apply(domain.Event{Type: domain.EventSubscribeSuccess, Payload: domain.SubscribeSuccessPayload{State: domain.StateIdle}})
	assert.Len(t, view.Messages, 1, "an ack without messages keeps the transcript")
}

func TestOptimisticMessageOverriddenByServer(t *testing.T) {
	view := NewSessionView("s1")
	id := view.AddOptimisticUserMessage("hello")

	assert.True(t, view.IsStreaming)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, id, view.Messages[0].ID)

	view.Apply(sessionUpdated(domain.StateIdle, nil))
	assert.False(t, view.IsStreaming)
}

func TestClone_IsIndependent(t *testing.T) {
	view := NewSessionView("s1")
	view.Apply(streamOutput("M", "a"))

	c := view.Clone()
	c.Messages[0].Content[0].Text = "changed"
	assert.Equal(t, "a", view.Messages[0].Content[0].Text)
}

func TestApply_CompletedMessageIgnoresLateSnapshots(t *testing.T) {
	t.Run("completed with usage", func(t *testing.T) {
		view := NewSessionView("s1")
		view.Apply(streamOutput("M", "final"))
		view.Apply(domain.Event{
			Type:    domain.EventMessageComplete,
			Payload: domain.MessageCompletePayload{MessageID: "M", Usage: &domain.TokenUsage{OutputTokens: 1}},
		})

		view.Apply(streamOutput("M", "late"))

		require.Len(t, view.Messages, 1)
		assert.Equal(t, "final", view.Messages[0].Content[0].Text)
		assert.False(t, view.Messages[0].IsStreaming)
	})

	t.Run("finalized without usage", func(t *testing.T) {
		view := NewSessionView("s1")
		view.Apply(streamOutput("M", "final"))
		view.Apply(domain.Event{Type: domain.EventMessageComplete, Payload: domain.MessageCompletePayload{}})

		view.Apply(streamOutput("M", "late"))

		require.Len(t, view.Messages, 1)
		assert.Equal(t, "final", view.Messages[0].Content[0].Text)
	})

	t.Run("other messages still stream", func(t *testing.T) {
		view := NewSessionView("s1")
		view.Apply(streamOutput("M", "final"))
		view.Apply(domain.Event{Type: domain.EventMessageComplete, Payload: domain.MessageCompletePayload{MessageID: "M"}})

		view.Apply(streamOutput("N", "next"))

		require.Len(t, view.Messages, 2)
		assert.Equal(t, "next", view.Messages[1].Content[0].Text)
	})

	t.Run("clone keeps completion", func(t *testing.T) {
		view := NewSessionView("s1")
		view.Apply(streamOutput("M", "final"))
		view.Apply(domain.Event{Type: domain.EventMessageComplete, Payload: domain.MessageCompletePayload{MessageID: "M"}})

		c := view.Clone()
		c.Apply(streamOutput("M", "late"))
		assert.Equal(t, "final", c.Messages[0].Content[0].Text)
	})
}
