package wsengine

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// messageState tracks reassembly mode across fragmented frames. Invariant:
// messageState == stateUnknown iff messageBuffer is empty.
type messageState int

const (
	stateUnknown messageState = iota
	stateText
	stateBinary
)

// lifecycle tracks the closing handshake: Open -> Closing -> Closed.
type lifecycle int

const (
	lifecycleOpen lifecycle = iota
	lifecycleClosing
	lifecycleClosed
)

// Connection is the per-connection protocol engine sitting between the
// frame codec and the application Service. One Connection exists per
// attached WebSocket.
//
// Every method that mutates Connection state (OnFrame, Attach, Detach, and
// the outbound operations in outbound.go) must only run on the channel's
// execution context — see Channel.Execute. Given that guarantee, no
// internal lock is needed: the schedule is already serial.
type Connection struct {
	id      string
	request *http.Request
	service Service
	channel Channel
	log     zerolog.Logger

	messageState  messageState
	messageBuffer bytes.Buffer

	connectionTimeout *int
	idle              IdleDetector
	waitingForPong    bool

	awaitClose        bool
	disconnectedFired bool
	life              lifecycle

	extensionNegotiated bool
}

// NewConnection creates a Connection for an upgraded request, not yet
// attached to any channel. request is retained only for its headers (the
// upgrade handshake itself is out of this engine's scope — see
// handshake.go).
func NewConnection(request *http.Request, service Service, logger zerolog.Logger) *Connection {
	id := newConnectionID()
	return &Connection{
		id:      id,
		request: request,
		service: service,
		log:     connLogger(logger, id),
		life:    lifecycleOpen,
	}
}

// ID returns the connection's stable opaque identifier.
func (c *Connection) ID() string { return c.id }

// Request returns the immutable HTTP upgrade request snapshot.
func (c *Connection) Request() *http.Request { return c.request }

// Attach wires the connection to its channel, negotiates the idle-detector
// interval from the Service's optional ConnectionTimeout, and fires
// Connected exactly once.
func (c *Connection) Attach(channel Channel) {
	c.channel = channel
	c.life = lifecycleOpen

	if c.request != nil {
		c.extensionNegotiated = permessageDeflateNegotiated(c.request.Header.Get("Sec-WebSocket-Extensions"))
	}

	if ta, ok := c.service.(TimeoutAware); ok {
		if secs, ok := ta.ConnectionTimeout(); ok && secs >= 0 {
			c.connectionTimeout = &secs
			interval := time.Duration(secs) * time.Second / 2
			c.idle = newTimerIdleDetector(interval)
			c.idle.Start(c.onIdleEvent)
		}
	}

	c.log.Debug().Msg("connection attached")
	c.service.Connected(c)
}

// Detach marks the connection closed and fires Disconnected if it hasn't
// already fired.
// The channel calls this once it can no longer deliver frames or accept
// writes, regardless of which side initiated the close.
func (c *Connection) Detach() {
	if c.idle != nil {
		c.idle.Stop()
	}
	c.fireDisconnected(CloseReason{Kind: ReasonNoReasonCodeSent})
	c.channel = nil
	c.life = lifecycleClosed
}

func (c *Connection) fireDisconnected(reason CloseReason) {
	if c.disconnectedFired {
		return
	}
	c.disconnectedFired = true
	c.log.Debug().Str("reason", reason.String()).Msg("connection disconnected")
	c.service.Disconnected(c, reason)
}

// OnFrame processes one decoded inbound frame. It must be called in
// arrival order, on the channel's execution context.
func (c *Connection) OnFrame(f *Frame) {
	if c.idle != nil {
		c.idle.Reset()
	}

	// Once the closing handshake has completed from this engine's point of
	// view, anything further from the peer is noise: a hard close only
	// shuts down the write half, so the read loop can keep delivering
	// frames until the socket actually dies, and the Service must not
	// observe any of them.
	if c.life == lifecycleClosed || c.disconnectedFired {
		return
	}

	if reason, ok := c.validateRSV(f); !ok {
		c.hardClose(reason)
		return
	}

	if !f.Opcode.IsKnown() {
		c.hardClose(CloseReason{
			Kind:        ReasonProtocolError,
			Description: fmt.Sprintf("Parsed a frame with an invalid operation code of %d", f.Opcode),
		})
		return
	}

	switch f.Opcode {
	case OpText, OpBinary:
		c.onDataFrame(f)
	case OpContinuation:
		c.onContinuation(f)
	case OpClose:
		c.onCloseFrame(f)
	case OpPing:
		c.onPing(f)
	case OpPong:
		c.onPong(f)
	}
}

// HandleReadError translates an error from the frame codec (or transport)
// into a close. err == nil is a no-op.
func (c *Connection) HandleReadError(err error) {
	if err == nil {
		return
	}
	c.hardClose(translateFrameError(err))
}

// validateRSV checks the reserved header bits (RFC 6455 Section 5.2): RSV1
// must be 0 unless an extension was negotiated; RSV2/RSV3 are always
// illegal in this engine.
func (c *Connection) validateRSV(f *Frame) (CloseReason, bool) {
	var bad []string
	if f.Rsv1 && !c.extensionNegotiated {
		bad = append(bad, "RSV1")
	}
	if f.Rsv2 {
		bad = append(bad, "RSV2")
	}
	if f.Rsv3 {
		bad = append(bad, "RSV3")
	}
	if len(bad) == 0 {
		return CloseReason{}, true
	}
	return CloseReason{
		Kind:        ReasonProtocolError,
		Description: strings.Join(bad, ", ") + " must be 0 unless negotiated to define meaning for non-zero values",
	}, false
}

// onDataFrame handles a text or binary frame (RFC 6455 Section 5.6).
func (c *Connection) onDataFrame(f *Frame) {
	if c.messageState != stateUnknown {
		c.hardClose(CloseReason{
			Kind:        ReasonProtocolError,
			Description: fmt.Sprintf("A %s frame must be the first in the message", f.Opcode),
		})
		return
	}
	if !f.Masked {
		c.hardClose(CloseReason{Kind: ReasonProtocolError, Description: "Received a frame from a client that wasn't masked"})
		return
	}

	if f.Fin {
		c.deliverMessage(f.Opcode, f.Data)
		return
	}

	c.messageState = dataStateFor(f.Opcode)
	c.messageBuffer.Reset()
	c.messageBuffer.Write(f.Data)
}

// onContinuation handles a continuation frame (RFC 6455 Section 5.4).
func (c *Connection) onContinuation(f *Frame) {
	if c.messageState == stateUnknown {
		c.hardClose(CloseReason{Kind: ReasonProtocolError, Description: "Continuation sent with prior binary or text frame"})
		return
	}

	c.messageBuffer.Write(f.Data)
	if !f.Fin {
		return
	}

	op := OpBinary
	if c.messageState == stateText {
		op = OpText
	}
	payload := make([]byte, c.messageBuffer.Len())
	copy(payload, c.messageBuffer.Bytes())

	c.messageState = stateUnknown
	c.messageBuffer.Reset()

	c.deliverMessage(op, payload)
}

// deliverMessage finalizes a complete message: strict UTF-8 validation for
// text (an empty payload is trivially valid and decodes to "" with no
// special case needed), then exactly one Service callback.
func (c *Connection) deliverMessage(op Opcode, data []byte) {
	if op == OpText {
		if !utf8.Valid(data) {
			c.hardClose(CloseReason{Kind: ReasonInvalidDataContents, Description: "Failed to convert received payload to UTF-8 String"})
			return
		}
		c.service.ReceivedText(c, string(data))
		return
	}
	c.service.ReceivedBinary(c, data)
}

func dataStateFor(op Opcode) messageState {
	if op == OpText {
		return stateText
	}
	return stateBinary
}

// onPing echoes the payload back as a pong (RFC 6455 Section 5.5.2). fin
// and length constraints for control frames are already enforced by the
// frame codec
// (ReadFrame rejects fragmented or oversized control frames before
// Connection ever sees them), so no further validation is needed here.
func (c *Connection) onPing(f *Frame) {
	_ = c.emitFrame(&Frame{Fin: true, Opcode: OpPong, Data: f.Data})
}

// onPong clears waitingForPong if a heartbeat was outstanding; an
// unsolicited pong is otherwise ignored (RFC 6455 Section 5.5.3).
func (c *Connection) onPong(*Frame) {
	c.waitingForPong = false
}
