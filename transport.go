package wsengine

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
)

// netChannel is the Channel implementation that sits over a hijacked
// net.Conn. It owns the read loop that turns bytes into frames and hands
// them to Connection.OnFrame, and it serializes every mutation of
// Connection state behind a single mutex, which is this engine's execution
// context: Connection needs no separate lock because netChannel already
// guarantees serial access.
type netChannel struct {
	conn   *Connection
	nc     net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	exec sync.Mutex

	mu       sync.Mutex
	writable bool
	active   bool
}

func newNetChannel(conn *Connection, nc net.Conn, reader *bufio.Reader, writer *bufio.Writer) *netChannel {
	return &netChannel{
		conn:     conn,
		nc:       nc,
		reader:   reader,
		writer:   writer,
		writable: true,
		active:   true,
	}
}

// start attaches the connection and begins the read loop. Called once,
// synchronously, from Upgrade.
func (ch *netChannel) start() {
	ch.conn.Attach(ch)
	go ch.readLoop()
}

// readLoop decodes frames until the peer disconnects or a codec error
// occurs, delivering each one to Connection through Execute so it's
// serialized against any concurrent Send/Close/Drop call from the
// application.
func (ch *netChannel) readLoop() {
	for {
		f, err := ReadFrame(ch.reader)
		if err != nil {
			ch.Execute(func() {
				if errors.Is(err, io.EOF) {
					return
				}
				ch.conn.HandleReadError(err)
			})
			break
		}

		ch.Execute(func() {
			ch.conn.OnFrame(f)
		})

		if !ch.Active() {
			break
		}
	}

	ch.teardown()
}

func (ch *netChannel) teardown() {
	ch.mu.Lock()
	ch.active = false
	ch.writable = false
	ch.mu.Unlock()

	_ = ch.nc.Close()

	ch.exec.Lock()
	ch.conn.Detach()
	ch.exec.Unlock()
}

// Writable reports whether WriteAndFlush can currently be attempted.
func (ch *netChannel) Writable() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.writable
}

// Active reports whether the channel is still attached to a live socket.
func (ch *netChannel) Active() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.active
}

// Close implements the two shutdown modes: CloseWrite half-closes the
// write direction so the peer's own close frame can still be read in
// reply; CloseAll tears the socket down immediately.
func (ch *netChannel) Close(mode CloseMode) error {
	switch mode {
	case CloseWrite:
		ch.mu.Lock()
		ch.writable = false
		ch.mu.Unlock()
		if tc, ok := ch.nc.(interface{ CloseWrite() error }); ok {
			return tc.CloseWrite()
		}
		return ch.nc.Close()
	default:
		ch.mu.Lock()
		ch.active = false
		ch.writable = false
		ch.mu.Unlock()
		return ch.nc.Close()
	}
}

// WriteAndFlush encodes f and flushes it to the socket. Only ever called
// from within an Execute closure (by Connection), so no additional
// locking is needed around the writer itself.
func (ch *netChannel) WriteAndFlush(f *Frame) error {
	if err := WriteFrame(ch.writer, f); err != nil {
		return err
	}
	return ch.writer.Flush()
}

// Execute runs fn with exclusive access to the connection's execution
// context. Safe to call from any goroutine, including from within another
// Execute call's closure (the read loop never does, to avoid
// self-deadlock on exec).
func (ch *netChannel) Execute(fn func()) {
	ch.exec.Lock()
	defer ch.exec.Unlock()
	fn()
}
