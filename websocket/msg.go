package websocket

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/zonegraph/models"
	"github.com/aukilabs/zonegraph/zone"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeBadMessage = "ws_bad_message"
)

const (
	MsgTypeViewpoint   = "viewpoint"
	MsgTypePing        = "ping"
	MsgTypeScopeUpdate = "scope_update"
	MsgTypePong        = "pong"
	MsgTypeError       = "error"
)

// Msg is a JSON message exchanged over a WebSocket connection.
type Msg struct {
	Type string
	Data []byte
}

// DataTo decodes the message into v.
func (m Msg) DataTo(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message failed").
			WithType(ErrTypeBadMessage).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

// MsgFromJSON encodes v into a message of the given type.
func MsgFromJSON(msgType string, v any) (Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Msg{}, errors.New("encoding message failed").
			WithTag("msg_type", msgType).
			Wrap(err)
	}
	return Msg{Type: msgType, Data: data}, nil
}

type msgHeader struct {
	Type string `json:"type"`
}

type ViewpointRequest struct {
	Type          string       `json:"type"`
	Position      models.Point `json:"position"`
	ScopeDistance float64      `json:"scope_distance,omitempty"`
}

type PingRequest struct {
	Type string `json:"type"`
}

type PongResponse struct {
	Type string `json:"type"`
}

type ScopeUpdate struct {
	Type      string          `json:"type"`
	Frame     uint64          `json:"frame"`
	ObjectIDs []zone.ObjectID `json:"object_ids"`
	Entered   []zone.ObjectID `json:"entered"`
	Left      []zone.ObjectID `json:"left"`
}

type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Receiver receives a message. It returns the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender sends a message. It returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to be sent to the client.
type ResponseSender interface {
	Send(typ string, v any)
}

// Receive reads a text frame from conn and decodes its message type.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return Msg{}, 0, err
	}

	var header msgHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return Msg{}, len(data), errors.New("invalid message").
			WithType(ErrTypeBadMessage).
			Wrap(err)
	}
	if header.Type == "" {
		return Msg{}, len(data), errors.New("message without type").
			WithType(ErrTypeBadMessage)
	}
	return Msg{Type: header.Type, Data: data}, len(data), nil
}

// Send writes msg to conn as a text frame.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	if err := websocket.Message.Send(conn, string(msg.Data)); err != nil {
		return 0, err
	}
	return len(msg.Data), nil
}
