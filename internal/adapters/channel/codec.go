package channel

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"

	"github.com/renato0307/sessiond/internal/domain"
)

// WebSocket subprotocols, in server preference order
const (
	SubprotocolCBOR = "sessiond.v1.cbor"
	SubprotocolJSON = "sessiond.v1.json"
)

// Subprotocols lists every supported subprotocol
var Subprotocols = []string{SubprotocolJSON, SubprotocolCBOR}

// Codec converts commands and events to and from wire frames. Every frame
// is an envelope {type, sessionId, payload}.
type Codec interface {
	DecodeCommand(data []byte) (domain.Command, error)
	DecodeEvent(data []byte) (domain.Event, error)
	EncodeCommand(cmd domain.Command) ([]byte, error)
	EncodeEvent(event domain.Event) ([]byte, error)
	// MessageType is the websocket frame type the codec writes
	MessageType() int
	Subprotocol() string
}

var (
	// JSONCodec writes text frames
	JSONCodec Codec = &frameCodec[json.RawMessage]{
		marshal:     json.Marshal,
		messageType: websocket.TextMessage,
		subprotocol: SubprotocolJSON,
		unmarshal:   json.Unmarshal,
	}

	// CBORCodec writes binary frames
	CBORCodec Codec
)

func init() {
	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err := encOptions.EncMode()
	if err != nil {
		panic("channel: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err := cbor.DecOptions{
		// Config maps must decode as map[string]any, like encoding/json
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("channel: CBOR decoder initialization failed: " + err.Error())
	}

	CBORCodec = &frameCodec[cbor.RawMessage]{
		marshal:     encMode.Marshal,
		messageType: websocket.BinaryMessage,
		subprotocol: SubprotocolCBOR,
		unmarshal:   decMode.Unmarshal,
	}
}

// CodecFor returns the codec for a negotiated subprotocol, JSON when none was agreed
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolCBOR {
		return CBORCodec
	}
	return JSONCodec
}

// outFrame is the envelope as written
type outFrame struct {
	Payload   any    `json:"payload,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Type      string `json:"type"`
}

// inFrame defers payload decoding until the type is known
type inFrame[R ~[]byte] struct {
	Payload   R      `json:"payload,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Type      string `json:"type"`
}

type commandPayload struct {
	Attachments []domain.Attachment `json:"attachments,omitempty"`
	Config      map[string]any      `json:"config,omitempty"`
	Text        string              `json:"text,omitempty"`
}

type frameCodec[R ~[]byte] struct {
	marshal     func(any) ([]byte, error)
	messageType int
	subprotocol string
	unmarshal   func([]byte, any) error
}

func (c *frameCodec[R]) MessageType() int { return c.messageType }
func (c *frameCodec[R]) Subprotocol() string { return c.subprotocol }

func (c *frameCodec[R]) EncodeCommand(cmd domain.Command) ([]byte, error) {
	var payload any
	if cmd.Text != "" || len(cmd.Attachments) > 0 || len(cmd.Config) > 0 {
		payload = commandPayload{Attachments: cmd.Attachments, Config: cmd.Config, Text: cmd.Text}
	}
	return c.marshal(outFrame{Payload: payload, SessionID: cmd.SessionID, Type: string(cmd.Type)})
}

func (c *frameCodec[R]) DecodeCommand(data []byte) (domain.Command, error) {
	var frame inFrame[R]
	if err := c.unmarshal(data, &frame); err != nil {
		return domain.Command{}, fmt.Errorf("failed to decode command frame: %w", err)
	}

	cmd := domain.Command{SessionID: frame.SessionID, Type: domain.CommandType(frame.Type)}
	if len(frame.Payload) > 0 {
		var payload commandPayload
		if err := c.unmarshal(frame.Payload, &payload); err != nil {
			return domain.Command{}, fmt.Errorf("failed to decode %s payload: %w", frame.Type, err)
		}
		cmd.Attachments = payload.Attachments
		cmd.Config = payload.Config
		cmd.Text = payload.Text
	}
	return cmd, nil
}

func (c *frameCodec[R]) EncodeEvent(event domain.Event) ([]byte, error) {
	return c.marshal(outFrame{Payload: event.Payload, SessionID: event.SessionID, Type: string(event.Type)})
}

func (c *frameCodec[R]) DecodeEvent(data []byte) (domain.Event, error) {
	var frame inFrame[R]
	if err := c.unmarshal(data, &frame); err != nil {
		return domain.Event{}, fmt.Errorf("failed to decode event frame: %w", err)
	}

	eventType := domain.EventType(frame.Type)
	target, err := domain.NewPayload(eventType)
	if err != nil {
		return domain.Event{}, err
	}
	if len(frame.Payload) > 0 {
		if err := c.unmarshal(frame.Payload, target); err != nil {
			return domain.Event{}, fmt.Errorf("failed to decode %s payload: %w", frame.Type, err)
		}
	}

	return domain.Event{
		Payload:   reflect.ValueOf(target).Elem().Interface(),
		SessionID: frame.SessionID,
		Type:      eventType,
	}, nil
}
