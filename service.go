package wsengine

// Service is the application-level dispatch layer a Connection drives.
// Implementations receive at most one Disconnected call per connection and
// never a Received call after Disconnected.
type Service interface {
	// Connected is invoked once, when the connection finishes attaching
	// to its channel.
	Connected(conn *Connection)

	// Disconnected is invoked once, when the connection's closing
	// handshake completes or its channel otherwise goes inactive.
	Disconnected(conn *Connection, reason CloseReason)

	// ReceivedText is invoked once per complete text message, after
	// fragment reassembly and UTF-8 validation have both succeeded.
	ReceivedText(conn *Connection, text string)

	// ReceivedBinary is invoked once per complete binary message, after
	// fragment reassembly.
	ReceivedBinary(conn *Connection, data []byte)
}

// TimeoutAware is an optional interface a Service may implement to expose
// a per-connection idle timeout in seconds. Connection.Attach consults it
// once, at attach time; half of the returned value becomes the
// idle-detector interval.
type TimeoutAware interface {
	ConnectionTimeout() (seconds int, ok bool)
}

// CloseMode selects how Channel.Close tears down the underlying transport.
type CloseMode int

const (
	// CloseWrite shuts down only the output half, after any pending write
	// has flushed. Used by Connection.Drop once its close frame has been
	// written.
	CloseWrite CloseMode = iota

	// CloseAll aborts both directions immediately, without waiting for a
	// pending write to flush. Used when a heartbeat goes unanswered and
	// when a close is requested on a channel that is no longer writable.
	CloseAll
)

// Channel is the transport abstraction a Connection is attached to. A
// concrete implementation (see netChannel in transport.go) owns the actual
// socket and the single execution context all of a connection's reads,
// writes, and state transitions are serialized onto.
type Channel interface {
	// Writable reports whether the channel currently accepts writes.
	Writable() bool

	// Active reports whether the channel is still attached to a live
	// connection. Once false, no further frames will be delivered and no
	// further writes will succeed.
	Active() bool

	// Close tears down the channel per mode.
	Close(mode CloseMode) error

	// WriteAndFlush serializes f and flushes it to the wire. Must only be
	// called from within Execute's callback.
	WriteAndFlush(f *Frame) error

	// Execute marshals fn onto the channel's execution context. Safe
	// to call from any goroutine; fn itself always runs on the single
	// context, so it observes a total order with frame delivery.
	Execute(fn func())
}

// IdleDetector emits an idle event when no I/O has occurred for its
// configured interval. A Connection installs one at attach time when its
// Service reports a ConnectionTimeout.
type IdleDetector interface {
	// Start arms the detector: onIdle fires after interval has elapsed
	// with no intervening Reset, and continues to re-arm itself after
	// firing until Stop is called.
	Start(onIdle func())

	// Reset restarts the interval, as if no time had elapsed. Called on
	// every inbound and outbound frame, so idleness is measured against
	// I/O in both directions.
	Reset()

	// Stop disarms the detector. Safe to call more than once.
	Stop()
}
