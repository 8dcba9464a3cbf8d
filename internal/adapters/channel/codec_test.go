package channel

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renato0307/sessiond/internal/domain"
)

func TestCodecs_EventRoundTrip(t *testing.T) {
	updatedAt := time.Date(2025, 3, 4, 5, 6, 7, 890, time.UTC)
	errMsg := "boom"
	count := 4

	events := []domain.Event{
		{
			Type:      domain.EventStreamOutput,
			SessionID: "s1",
			Payload: domain.StreamOutputPayload{Message: domain.UnifiedMessage{
				ID:          "m1",
				Role:        domain.RoleAssistant,
				IsStreaming: true,
				Content: []domain.ContentBlock{
					domain.TextBlock("hello"),
					{Type: domain.BlockToolUse, ID: "t1", Name: "Read", Input: json.RawMessage(`{"path":"a.go"}`)},
				},
			}},
		},
		{
			Type:      domain.EventMessageComplete,
			SessionID: "s1",
			Payload: domain.MessageCompletePayload{
				MessageID: "m1",
				Usage:     &domain.TokenUsage{InputTokens: 1, OutputTokens: 2},
				Metadata:  &domain.MetadataPatch{MessageCount: &count},
			},
		},
		{
			Type:      domain.EventSessionUpdated,
			SessionID: "s1",
			Payload: domain.SessionUpdatedPayload{
				ErrorMessage: &errMsg,
				State:        domain.StateError,
				UpdatedAt:    updatedAt,
			},
		},
		{
			Type:      domain.EventSubscribeSuccess,
			SessionID: "s1",
			Payload:   domain.SubscribeSuccessPayload{State: domain.StateIdle},
		},
		domain.ErrorEvent("s1", "session is busy", ""),
	}

	for _, codec := range []Codec{JSONCodec, CBORCodec} {
		t.Run(codec.Subprotocol(), func(t *testing.T) {
			for _, event := range events {
				data, err := codec.EncodeEvent(event)
				require.NoError(t, err)

				decoded, err := codec.DecodeEvent(data)
				require.NoError(t, err)
				assert.Equal(t, event.Type, decoded.Type)
				assert.Equal(t, event.SessionID, decoded.SessionID)

				switch want := event.Payload.(type) {
				case domain.SessionUpdatedPayload:
					got, ok := decoded.Payload.(domain.SessionUpdatedPayload)
					require.True(t, ok)
					assert.Equal(t, want.State, got.State)
					require.NotNil(t, got.ErrorMessage)
					assert.Equal(t, "boom", *got.ErrorMessage)
					assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
				case domain.StreamOutputPayload:
					got, ok := decoded.Payload.(domain.StreamOutputPayload)
					require.True(t, ok)
					assert.Equal(t, want.Message.ID, got.Message.ID)
					require.Len(t, got.Message.Content, 2)
					assert.Equal(t, "hello", got.Message.Content[0].Text)
					assert.JSONEq(t, `{"path":"a.go"}`, string(got.Message.Content[1].Input))
				default:
					assert.Equal(t, event.Payload, decoded.Payload)
				}
			}
		})
	}
}

func TestCodecs_CommandRoundTrip(t *testing.T) {
	cmd := domain.Command{
		Type:        domain.CommandSendMessage,
		SessionID:   "s1",
		Text:        "hi",
		Attachments: []domain.Attachment{{Name: "a.png", MediaType: "image/png"}},
		Config:      map[string]any{"model": "fast"},
	}

	for _, codec := range []Codec{JSONCodec, CBORCodec} {
		t.Run(codec.Subprotocol(), func(t *testing.T) {
			data, err := codec.EncodeCommand(cmd)
			require.NoError(t, err)

			decoded, err := codec.DecodeCommand(data)
			require.NoError(t, err)
			assert.Equal(t, cmd, decoded)

			data, err = codec.EncodeCommand(domain.Command{Type: domain.CommandSubscribe, SessionID: "s1"})
			require.NoError(t, err)
			decoded, err = codec.DecodeCommand(data)
			require.NoError(t, err)
			assert.Equal(t, domain.Command{Type: domain.CommandSubscribe, SessionID: "s1"}, decoded)
		})
	}
}

func TestJSONCodec_WireFormat(t *testing.T) {
	data, err := JSONCodec.EncodeEvent(domain.ErrorEvent("s1", "nope", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","sessionId":"s1","payload":{"message":"nope"}}`, string(data))

	cmd, err := JSONCodec.DecodeCommand([]byte(`{"type":"cancel","sessionId":"s9"}`))
	require.NoError(t, err)
	assert.Equal(t, domain.CommandCancel, cmd.Type)
	assert.Equal(t, "s9", cmd.SessionID)
}

func TestCodecs_RejectUnknownEvent(t *testing.T) {
	_, err := JSONCodec.DecodeEvent([]byte(`{"type":"bogus","payload":{}}`))
	assert.Error(t, err)

	_, err = JSONCodec.DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestCodecFor(t *testing.T) {
	assert.Equal(t, CBORCodec, CodecFor(SubprotocolCBOR))
	assert.Equal(t, JSONCodec, CodecFor(SubprotocolJSON))
	assert.Equal(t, JSONCodec, CodecFor(""))
	assert.Equal(t, websocket.BinaryMessage, CBORCodec.MessageType())
	assert.Equal(t, websocket.TextMessage, JSONCodec.MessageType())
}
