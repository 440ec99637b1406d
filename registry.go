package wsengine

import (
	"sync"

	"github.com/rs/zerolog"
)

// Registry tracks every live Connection created through it and gives an
// application a single place to enumerate or broadcast to them. Each
// Connection still fires Connected/Disconnected exactly once whether or
// not a Registry is involved at all; Registry is a convenience wrapper,
// not a requirement of the engine.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	wg          sync.WaitGroup
	log         zerolog.Logger
}

// NewRegistry creates an empty Registry. logger is attached to every
// Registry-level log line (connection count changes); pass DefaultLogger
// to discard them.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		log:         logger,
	}
}

// Wrap returns a Service that delegates to inner but also registers and
// unregisters the Connection with r as it connects and disconnects. Use
// this as the Service passed to Upgrade when connections should be
// trackable through the Registry.
func (r *Registry) Wrap(inner Service) Service {
	return &registryService{registry: r, inner: inner}
}

func (r *Registry) add(conn *Connection) {
	r.mu.Lock()
	r.connections[conn.ID()] = conn
	n := len(r.connections)
	r.mu.Unlock()
	r.wg.Add(1)
	r.log.Debug().Str("conn_id", conn.ID()).Int("count", n).Msg("connection registered")
}

func (r *Registry) remove(conn *Connection) {
	r.mu.Lock()
	if _, ok := r.connections[conn.ID()]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.connections, conn.ID())
	n := len(r.connections)
	r.mu.Unlock()
	r.wg.Done()
	r.log.Debug().Str("conn_id", conn.ID()).Int("count", n).Msg("connection unregistered")
}

// Count returns the number of currently registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Each calls fn once for every currently registered connection. fn must
// not block; it runs with r's read lock held.
func (r *Registry) Each(fn func(*Connection)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conn := range r.connections {
		fn(conn)
	}
}

// Broadcast sends text to every registered connection. Connections that
// can't currently accept output (already closing) silently drop it, same
// as a single Send would.
func (r *Registry) Broadcast(text string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, conn := range r.connections {
		conn.Send(text)
	}
}

// Shutdown drops every registered connection with reason and waits for
// their Disconnected callbacks to fire.
func (r *Registry) Shutdown(reason CloseReason) {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		conn.Drop(reason, reason.Description)
	}
	r.wg.Wait()
}

// registryService wraps an application Service so that Connected/
// Disconnected also update the owning Registry's bookkeeping.
type registryService struct {
	registry *Registry
	inner    Service
}

func (s *registryService) Connected(conn *Connection) {
	s.registry.add(conn)
	s.inner.Connected(conn)
}

func (s *registryService) Disconnected(conn *Connection, reason CloseReason) {
	s.inner.Disconnected(conn, reason)
	s.registry.remove(conn)
}

func (s *registryService) ReceivedText(conn *Connection, text string) {
	s.inner.ReceivedText(conn, text)
}

func (s *registryService) ReceivedBinary(conn *Connection, data []byte) {
	s.inner.ReceivedBinary(conn, data)
}

// ConnectionTimeout forwards TimeoutAware if the wrapped Service
// implements it, so Attach's heartbeat negotiation still sees it through
// the wrapper.
func (s *registryService) ConnectionTimeout() (int, bool) {
	if ta, ok := s.inner.(TimeoutAware); ok {
		return ta.ConnectionTimeout()
	}
	return 0, false
}
