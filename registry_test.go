package wsengine

import "testing"

func TestRegistry_TracksConnectAndDisconnect(t *testing.T) {
	registry := NewRegistry(DefaultLogger)
	inner := &fakeService{}
	wrapped := registry.Wrap(inner)

	conn := NewConnection(nil, wrapped, DefaultLogger)
	channel := newFakeChannel()
	conn.Attach(channel)

	if registry.Count() != 1 {
		t.Fatalf("expected 1 registered connection, got %d", registry.Count())
	}
	if inner.connected != 1 {
		t.Fatalf("expected the wrapped Service to observe Connected, got %d", inner.connected)
	}

	conn.Detach()
	if registry.Count() != 0 {
		t.Fatalf("expected 0 registered connections after Detach, got %d", registry.Count())
	}
	if len(inner.disconnected) != 1 {
		t.Fatalf("expected the wrapped Service to observe Disconnected, got %d", len(inner.disconnected))
	}
}

func TestRegistry_Broadcast(t *testing.T) {
	registry := NewRegistry(DefaultLogger)

	var conns []*Connection
	var channels []*fakeChannel
	for i := 0; i < 3; i++ {
		service := registry.Wrap(&fakeService{})
		conn := NewConnection(nil, service, DefaultLogger)
		channel := newFakeChannel()
		conn.Attach(channel)
		conns = append(conns, conn)
		channels = append(channels, channel)
	}

	registry.Broadcast("hello everyone")

	for i, channel := range channels {
		if len(channel.writes) != 1 || channel.writes[0].Opcode != OpText || string(channel.writes[0].Data) != "hello everyone" {
			t.Errorf("connection %d: expected one broadcast text frame, got %+v", i, channel.writes)
		}
	}
}

func TestRegistry_Shutdown_DropsEveryConnection(t *testing.T) {
	registry := NewRegistry(DefaultLogger)

	for i := 0; i < 2; i++ {
		service := registry.Wrap(&fakeService{})
		conn := NewConnection(nil, service, DefaultLogger)
		conn.Attach(newFakeChannel())
		_ = conn
	}

	registry.Shutdown(CloseReason{Kind: ReasonGoingAway})
	if registry.Count() != 0 {
		t.Fatalf("expected Shutdown to leave no registered connections, got %d", registry.Count())
	}
}
