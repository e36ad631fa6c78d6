package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// ResponseSender queues messages to send to the connected client.
type ResponseSender interface {
	// Send encodes and queues a typed message.
	Send(TypedMsg)

	// SendMsg queues an already encoded message.
	SendMsg(Msg)
}

// Handler represents an observer handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to translate the camera.
	HandleMoveCamera(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to rotate the camera.
	HandleTurnCamera(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to freeze the current frustum.
	HandlePinFrustum(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to release a frozen frustum.
	HandleUnpinFrustum(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to place an object.
	HandleMoveObject(ctx context.Context, respond ResponseSender, msg Msg) error

	// Starts pushing frames to the client with the given function. The
	// returned function stops it.
	StartFrameStream(push func(TypedMsg)) (stop func())

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender used to write outgoing messages.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// The client id.
	GetClientID() string
}

// Handle handles the given connection until it is closed or ctx is done.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The observer handler.
	Handler Handler

	sendChan       chan Msg
	receiveChan    chan Msg
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup

	h.sendChan = make(chan Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan Msg, receiveChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	stopFrames := h.Handler.StartFrameStream(h.pushFrame)
	defer stopFrames()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	var responder = responseSender{
		send:    h.send,
		sendMsg: h.sendMsg,
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			stopFrames()
			h.handleDisconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			stopFrames()
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	wg.Wait()
}

func (h *handler) send(typed TypedMsg) {
	msg, err := MsgFromData(typed)
	if err != nil {
		logs.WithTag("message", typed).
			WithClientID(h.Handler.GetClientID()).
			Debug(err)
		return
	}
	h.sendMsg(msg)
}

func (h *handler) sendMsg(msg Msg) {
	select {
	case h.sendChan <- msg:
	default:
		h.disconnect(errors.New("send queue is full").
			WithTag("msg_type", msg.TypeString()).
			WithTag("size", sendChanSize))
	}
}

// pushFrame queues a frame. Frames that do not fit in the send queue are
// dropped.
func (h *handler) pushFrame(typed TypedMsg) {
	msg, err := MsgFromData(typed)
	if err != nil {
		logs.WithClientID(h.Handler.GetClientID()).Debug(err)
		return
	}

	select {
	case h.sendChan <- msg:
	default:
		instrumentDroppedFrame()
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if errors.IsType(err, ErrTypeInvalidMsg) {
				h.send(newErrorResponse(0, err))
				continue
			}
			if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case h.receiveChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleMessage dispatches a message to the handler. Errors caused by the
// message itself are reported to the client. Other errors end the
// connection.
func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	var err error

	switch msg.Type {
	case MsgTypePing:
		err = h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeMoveCamera:
		err = h.Handler.HandleMoveCamera(ctx, responder, msg)

	case MsgTypeTurnCamera:
		err = h.Handler.HandleTurnCamera(ctx, responder, msg)

	case MsgTypePinFrustum:
		err = h.Handler.HandlePinFrustum(ctx, responder, msg)

	case MsgTypeUnpinFrustum:
		err = h.Handler.HandleUnpinFrustum(ctx, responder, msg)

	case MsgTypeMoveObject:
		err = h.Handler.HandleMoveObject(ctx, responder, msg)

	default:
		err = errors.New("unknown message type").
			WithType(ErrTypeInvalidMsg).
			WithTag("msg_type", msg.Type)
	}

	if err == nil {
		return nil
	}

	if isClientError(err) {
		responder.Send(newErrorResponse(msg.RequestID, err))
		return nil
	}
	return err
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send    func(TypedMsg)
	sendMsg func(Msg)
}

func (r responseSender) Send(msg TypedMsg) {
	r.send(msg)
}

func (r responseSender) SendMsg(msg Msg) {
	r.sendMsg(msg)
}
