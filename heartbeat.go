package wsengine

// onIdleEvent fires when the idle detector sees no I/O for a full
// interval: if a heartbeat ping is already outstanding, the peer missed
// it, so the channel is dropped with no close frame (the peer is presumed
// unreachable); otherwise a fresh ping is sent and the connection starts
// waiting for its pong.
func (c *Connection) onIdleEvent() {
	c.execute(func() {
		if !c.ready() {
			return
		}
		if c.waitingForPong {
			c.log.Warn().Msg("heartbeat missed, dropping connection")
			_ = c.channel.Close(CloseAll)
			return
		}
		c.waitingForPong = true
		_ = c.emitFrame(&Frame{Fin: true, Opcode: OpPing})
	})
}
