package wsengine

// suppressed reports whether an outbound frame of opcode op must be held
// back because the connection already sent a close frame. Pong is
// deliberately not in the suppressed set — echoing a ping that raced the
// close is harmless and not a protocol violation.
func (c *Connection) suppressed(op Opcode) bool {
	if !c.awaitClose {
		return false
	}
	switch op {
	case OpText, OpBinary, OpContinuation, OpPing:
		return true
	default:
		return false
	}
}

// execute marshals fn onto the channel's execution context, or drops it if
// the connection has already detached.
func (c *Connection) execute(fn func()) {
	ch := c.channel
	if ch == nil {
		return
	}
	ch.Execute(fn)
}

// ready reports whether the connection can currently emit anything at all:
// attached, active, and writable.
func (c *Connection) ready() bool {
	return c.channel != nil && c.channel.Active() && c.channel.Writable()
}

// emitFrame writes f through the channel, resetting the idle detector on
// success (idleness is measured against I/O in both directions). Callers
// marshal onto the channel's execution context before calling this; it
// must never be called directly from another goroutine.
func (c *Connection) emitFrame(f *Frame) error {
	if !c.ready() {
		return ErrClosed
	}
	if err := c.channel.WriteAndFlush(f); err != nil {
		return err
	}
	if c.idle != nil {
		c.idle.Reset()
	}
	return nil
}

// Send enqueues a text frame with fin=true. Marshals onto the channel's
// execution context; safe to call from any goroutine.
func (c *Connection) Send(text string) {
	c.execute(func() {
		if c.suppressed(OpText) || !c.ready() {
			return
		}
		_ = c.emitFrame(&Frame{Fin: true, Opcode: OpText, Data: []byte(text)})
	})
}

// SendBinary enqueues a binary frame with fin=true.
func (c *Connection) SendBinary(data []byte) {
	c.execute(func() {
		if c.suppressed(OpBinary) || !c.ready() {
			return
		}
		_ = c.emitFrame(&Frame{Fin: true, Opcode: OpBinary, Data: data})
	})
}

// Ping enqueues a ping frame with fin=true; payload defaults to empty.
func (c *Connection) Ping(payload []byte) {
	c.execute(func() {
		if c.suppressed(OpPing) || !c.ready() {
			return
		}
		_ = c.emitFrame(&Frame{Fin: true, Opcode: OpPing, Data: payload})
	})
}

// Close performs a soft close: send a close frame and keep reading until
// the peer replies. reason defaults to ReasonNormal when zero-valued;
// description is optional.
func (c *Connection) Close(reason CloseReason, description string) {
	c.execute(func() {
		c.localClose(reason, description, false)
	})
}

// Drop performs a hard close: send a close frame, then shut down the
// output half once it flushes.
func (c *Connection) Drop(reason CloseReason, description string) {
	c.execute(func() {
		c.localClose(reason, description, true)
	})
}

// localClose is the locally-initiated close path shared by Close and Drop;
// hard selects Drop's post-write shutdown.
//
// Unlike a peer-initiated close, nothing guarantees the channel will ever
// become inactive promptly (Drop only half-closes the write side), so for
// a hard close, and whenever the close frame cannot be written, localClose
// itself reports reason to the Service rather than waiting for Detach. A
// soft Close that wrote its frame reports nothing here: the Service sees
// the peer's echoed reason (replyAndClose) or Detach's generic fallback.
// fireDisconnected's once-only guard means whichever close path runs
// first — this one, replyAndClose, or Detach's generic fallback — is the
// one the Service actually observes.
func (c *Connection) localClose(reason CloseReason, description string, hard bool) {
	if c.awaitClose || c.channel == nil || !c.channel.Active() {
		return
	}

	reason.Description = description
	c.life = lifecycleClosing

	if !c.channel.Writable() {
		// Nothing can be flushed anymore: close the channel directly
		// without emitting a frame.
		c.awaitClose = true
		_ = c.channel.Close(CloseAll)
		c.fireDisconnected(reason)
		return
	}

	c.awaitClose = true

	payload := encodeClosePayload(reason, description)
	if err := c.emitFrame(&Frame{Fin: true, Opcode: OpClose, Data: payload}); err != nil {
		_ = c.channel.Close(CloseAll)
		c.fireDisconnected(reason)
		return
	}

	if hard {
		_ = c.channel.Close(CloseWrite)
		c.fireDisconnected(reason)
	}
}

// hardClose is used internally for protocol/payload violations detected
// while processing an inbound frame. It always behaves like Drop.
func (c *Connection) hardClose(reason CloseReason) {
	c.log.Warn().Str("reason", reason.String()).Msg("closing connection")
	c.localClose(reason, reason.Description, true)
}

// encodeClosePayload builds the close-frame payload (RFC 6455 Section
// 5.5.1): u16 code in network order, then an optional UTF-8 description.
func encodeClosePayload(reason CloseReason, description string) []byte {
	code := encodeCloseCode(reason)
	payload := make([]byte, 2+len(description))
	payload[0] = byte(code >> 8)
	payload[1] = byte(code)
	copy(payload[2:], description)
	return payload
}
