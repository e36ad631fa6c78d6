package websocket

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcull/engine"
	"github.com/aukilabs/quadcull/quadtree"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeInvalidMsg = "invalid_msg"
)

const (
	MsgTypePing         = "ping"
	MsgTypePong         = "pong"
	MsgTypeMoveCamera   = "move_camera"
	MsgTypeTurnCamera   = "turn_camera"
	MsgTypePinFrustum   = "pin_frustum"
	MsgTypeUnpinFrustum = "unpin_frustum"
	MsgTypeMoveObject   = "move_object"
	MsgTypeFrame        = "frame"
	MsgTypeError        = "error"
)

// Msg is a JSON message exchanged with an observer. Its payload is kept
// encoded until read with DataTo.
type Msg struct {
	Type      string
	RequestID uint32
	data      []byte
}

// DataTo decodes the message payload into v.
func (m Msg) DataTo(v any) error {
	if err := json.Unmarshal(m.data, v); err != nil {
		return errors.New("decoding message data failed").
			WithType(ErrTypeInvalidMsg).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return m.Type
}

// TypedMsg is a message payload that knows its type.
type TypedMsg interface {
	MsgType() string
}

// MsgFromData encodes a typed payload into a message.
func MsgFromData(v TypedMsg) (Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Msg{}, errors.New("encoding message failed").
			WithTag("msg_type", v.MsgType()).
			Wrap(err)
	}
	return Msg{Type: v.MsgType(), data: data}, nil
}

// ParseMsg decodes the header of an encoded message.
func ParseMsg(data []byte) (Msg, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return Msg{}, errors.New("decoding message failed").
			WithType(ErrTypeInvalidMsg).
			Wrap(err)
	}
	if h.Type == "" {
		return Msg{}, errors.New("message has no type").
			WithType(ErrTypeInvalidMsg)
	}
	return Msg{Type: h.Type, RequestID: h.RequestID, data: data}, nil
}

// Receiver receives a message. It returns the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender sends a message. It returns the number of bytes written.
type Sender func(Msg) (int, error)

// Receive reads a text message from the connection.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return Msg{}, 0, err
	}

	msg, err := ParseMsg(data)
	return msg, len(data), err
}

// Send writes the message as a text message on the connection.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	if err := websocket.Message.Send(conn, string(msg.data)); err != nil {
		return 0, err
	}
	return len(msg.data), nil
}

// Header is the part shared by every message.
type Header struct {
	Type      string `json:"type"`
	RequestID uint32 `json:"request_id,omitempty"`
}

func (h Header) MsgType() string {
	return h.Type
}

type MoveCameraRequest struct {
	Header
	DX float32 `json:"dx"`
	DY float32 `json:"dy"`
	DZ float32 `json:"dz"`
}

// TurnCameraRequest rotates the camera. Angles are in radians.
type TurnCameraRequest struct {
	Header
	Pitch   float32 `json:"pitch"`
	Heading float32 `json:"heading"`
}

type MoveObjectRequest struct {
	Header
	Name string  `json:"name"`
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
	Z    float32 `json:"z"`
}

type Response struct {
	Header
	Time time.Time `json:"time"`
}

type ErrorResponse struct {
	Header
	Message string `json:"message"`
	ErrType string `json:"error_type,omitempty"`
}

// FrameMsg is the frame pushed to observers after every engine frame.
type FrameMsg struct {
	Header
	Frame   uint64                 `json:"frame"`
	Time    time.Time              `json:"time"`
	Camera  engine.CameraInfo      `json:"camera"`
	Visible []engine.VisibleObject `json:"visible"`
	Stats   quadtree.CullStats     `json:"stats"`
}

func newFrameMsg(f engine.Frame) *FrameMsg {
	return &FrameMsg{
		Header:  Header{Type: MsgTypeFrame},
		Frame:   f.Number,
		Time:    f.Time,
		Camera:  f.Camera,
		Visible: f.Visible,
		Stats:   f.Stats,
	}
}

func newErrorResponse(requestID uint32, err error) *ErrorResponse {
	return &ErrorResponse{
		Header: Header{
			Type:      MsgTypeError,
			RequestID: requestID,
		},
		Message: err.Error(),
		ErrType: errors.Type(err),
	}
}
