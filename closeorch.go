package wsengine

import "unicode/utf8"

// onCloseFrame handles a peer-initiated close (RFC 6455 Section 5.5.1):
// decode the payload, normalize the code, reply in kind, and surface
// exactly one Disconnected callback.
func (c *Connection) onCloseFrame(f *Frame) {
	n := len(f.Data)
	if n == 1 || n > maxControlPayload {
		c.hardClose(CloseReason{
			Kind:        ReasonProtocolError,
			Description: "Close frames, that have a payload, must be between 2 and 125 octets inclusive",
		})
		return
	}

	if n == 0 {
		c.replyAndClose(CloseReason{Kind: ReasonNormal, Code: 1000})
		return
	}

	code := uint16(f.Data[0])<<8 | uint16(f.Data[1])
	description := f.Data[2:]
	if !utf8.Valid(description) {
		c.hardClose(CloseReason{Kind: ReasonInvalidDataContents, Description: "Failed to convert received payload to UTF-8 String"})
		return
	}

	reason := decodeCloseCode(code)
	reason.Description = string(description)
	c.replyAndClose(reason)
}

// replyAndClose echoes reason back to the peer (if a reply hasn't already
// gone out), transitions to Closing, and fires Disconnected exactly once.
func (c *Connection) replyAndClose(reason CloseReason) {
	if !c.awaitClose {
		c.awaitClose = true
		if c.ready() {
			payload := encodeClosePayload(reason, reason.Description)
			_ = c.emitFrame(&Frame{Fin: true, Opcode: OpClose, Data: payload})
		}
	}
	c.life = lifecycleClosing
	c.fireDisconnected(reason)
}
