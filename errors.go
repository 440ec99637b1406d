package wsengine

import "errors"

// Sentinel errors the frame codec (ReadFrame) can surface. These describe
// properties of the byte stream itself, not opcode-dispatch policy — see
// Frame's doc comment for the split between codec-level and engine-level
// validation.
var (
	// ErrControlTooLong indicates a control frame payload over 125 bytes
	// (RFC 6455 Section 5.5).
	ErrControlTooLong = errors.New("wsengine: control frame payload exceeds 125 octets")

	// ErrControlFragmented indicates a control frame with fin=false
	// (RFC 6455 Section 5.5: control frames must not be fragmented).
	ErrControlFragmented = errors.New("wsengine: control frame must not be fragmented")

	// ErrFrameTooLarge indicates a frame length beyond the codec's
	// configured maximum.
	ErrFrameTooLarge = errors.New("wsengine: frame exceeds configured maximum acceptable frame size")
)

// ErrClosed is returned by outbound operations (Send, Ping, Close, Drop)
// attempted on a connection that has already begun its closing handshake.
var ErrClosed = errors.New("wsengine: connection is closing or closed")

// Sentinel errors returned by Upgrade when the opening handshake (RFC 6455
// Section 4) fails. The caller is expected to answer with a plain HTTP
// error response — no WebSocket connection exists yet at this point.
var (
	ErrInvalidMethod     = errors.New("wsengine: method must be GET")
	ErrMissingUpgrade    = errors.New("wsengine: missing or invalid Upgrade header")
	ErrMissingConnection = errors.New("wsengine: missing or invalid Connection header")
	ErrMissingSecKey     = errors.New("wsengine: missing Sec-WebSocket-Key header")
	ErrInvalidVersion    = errors.New("wsengine: unsupported Sec-WebSocket-Version")
	ErrOriginDenied      = errors.New("wsengine: origin check failed")
	ErrHijackFailed      = errors.New("wsengine: response writer does not support hijacking")
)

// translateFrameError maps an error surfaced by the framing layer to a
// CloseReason. The caller (Connection.HandleReadError) always hard-closes
// with the returned reason: all of the reasons here represent
// unrecoverable stream desynchronization.
func translateFrameError(err error) CloseReason {
	switch {
	case errors.Is(err, ErrControlTooLong):
		return CloseReason{Kind: ReasonProtocolError,
			Description: "Control frames are only allowed to have payload up to and including 125 octets"}
	case errors.Is(err, ErrControlFragmented):
		return CloseReason{Kind: ReasonProtocolError,
			Description: "Control frames must not be fragmented"}
	case errors.Is(err, ErrFrameTooLarge):
		return CloseReason{Kind: ReasonProtocolError,
			Description: "Frames must be smaller than the configured maximum acceptable frame size"}
	default:
		return CloseReason{Kind: ReasonServerError, Description: err.Error()}
	}
}
