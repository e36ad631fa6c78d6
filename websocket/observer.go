package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcull/engine"
	"github.com/aukilabs/quadcull/featureflag"
	"github.com/aukilabs/quadcull/models"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// HeaderClientID is the request header carrying the id of an observer. A
// random id is given to observers that do not set it.
const HeaderClientID = "X-Quadcull-Client-Id"

// ObserverHandler streams the frames of an engine to a client and lets it
// drive the camera.
type ObserverHandler struct {
	// The time a client is idle before being disconnected. Clients that only
	// watch frames must ping to stay connected.
	ClientIdleTimeout time.Duration

	// The engine being observed.
	Engine *engine.Engine

	FeatureFlags featureflag.FeatureFlag

	conn     *websocket.Conn
	clientID string

	stopOnce sync.Once
}

func (h *ObserverHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	h.conn = conn
}

func (h *ObserverHandler) HandleDisconnect(_ error) {
}

func (h *ObserverHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(&Response{
		Header: Header{
			Type:      MsgTypePong,
			RequestID: msg.RequestID,
		},
		Time: time.Now(),
	})
	return nil
}

func (h *ObserverHandler) HandleMoveCamera(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req MoveCameraRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.Engine.MoveCamera(req.DX, req.DY, req.DZ)
	return nil
}

func (h *ObserverHandler) HandleTurnCamera(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req TurnCameraRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	h.Engine.TurnCamera(req.Pitch, req.Heading)
	return nil
}

func (h *ObserverHandler) HandlePinFrustum(ctx context.Context, respond ResponseSender, msg Msg) error {
	h.Engine.PinFrustum()
	return nil
}

func (h *ObserverHandler) HandleUnpinFrustum(ctx context.Context, respond ResponseSender, msg Msg) error {
	h.Engine.UnpinFrustum()
	return nil
}

func (h *ObserverHandler) HandleMoveObject(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req MoveObjectRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if req.Name == "" {
		return errors.New("object name is empty").
			WithType(ErrTypeInvalidMsg)
	}

	return h.Engine.MoveObject(req.Name, mgl32.Vec3{req.X, req.Y, req.Z})
}

func (h *ObserverHandler) StartFrameStream(push func(TypedMsg)) func() {
	if h.FeatureFlags.IsSet(featureflag.FlagDisableFrameBroadcast) {
		return func() {}
	}

	cancel := h.Engine.OnFrame(func(f engine.Frame) {
		push(newFrameMsg(f))
	})
	return func() {
		h.stopOnce.Do(cancel)
	}
}

func (h *ObserverHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *ObserverHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *ObserverHandler) Close() {
}

func (h *ObserverHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *ObserverHandler) GetClientID() string {
	return h.clientID
}

// isClientError reports whether an error was caused by a client request
// rather than by the connection.
func isClientError(err error) bool {
	switch errors.Type(err) {
	case ErrTypeInvalidMsg,
		models.ErrTypeObjectNotFound,
		engine.ErrTypeEngineClosed:
		return true
	default:
		return false
	}
}
