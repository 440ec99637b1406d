package wsengine

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func validUpgradeRequest() *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set("Sec-WebSocket-Version", "13")
	return req
}

// TestUpgrade_ComputesAcceptKey checks the RFC 6455 Section 1.3 worked
// example: httptest.ResponseRecorder can't be hijacked, so this only
// verifies the handshake got as far as writing headers before failing on
// the hijack step.
func TestUpgrade_ComputesAcceptKey(t *testing.T) {
	req := validUpgradeRequest()
	w := httptest.NewRecorder()

	_, err := Upgrade(w, req, &fakeService{}, nil)
	if !errors.Is(err, ErrHijackFailed) {
		t.Fatalf("expected ErrHijackFailed with a non-hijackable ResponseWriter, got %v", err)
	}

	if w.Code != http.StatusSwitchingProtocols {
		t.Errorf("expected status 101, got %d", w.Code)
	}
	if got := w.Header().Get("Sec-WebSocket-Accept"); got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Errorf("Sec-WebSocket-Accept = %q, want %q", got, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=")
	}
}

func TestUpgrade_RejectsNonGet(t *testing.T) {
	req := validUpgradeRequest()
	req.Method = http.MethodPost
	w := httptest.NewRecorder()

	_, err := Upgrade(w, req, &fakeService{}, nil)
	if !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
}

func TestUpgrade_RejectsMissingUpgradeHeader(t *testing.T) {
	req := validUpgradeRequest()
	req.Header.Del("Upgrade")
	w := httptest.NewRecorder()

	_, err := Upgrade(w, req, &fakeService{}, nil)
	if !errors.Is(err, ErrMissingUpgrade) {
		t.Fatalf("expected ErrMissingUpgrade, got %v", err)
	}
}

func TestUpgrade_RejectsMissingConnectionHeader(t *testing.T) {
	req := validUpgradeRequest()
	req.Header.Del("Connection")
	w := httptest.NewRecorder()

	_, err := Upgrade(w, req, &fakeService{}, nil)
	if !errors.Is(err, ErrMissingConnection) {
		t.Fatalf("expected ErrMissingConnection, got %v", err)
	}
}

func TestUpgrade_RejectsWrongVersion(t *testing.T) {
	req := validUpgradeRequest()
	req.Header.Set("Sec-WebSocket-Version", "8")
	w := httptest.NewRecorder()

	_, err := Upgrade(w, req, &fakeService{}, nil)
	if !errors.Is(err, ErrInvalidVersion) {
		t.Fatalf("expected ErrInvalidVersion, got %v", err)
	}
}

func TestUpgrade_RejectsMissingKey(t *testing.T) {
	req := validUpgradeRequest()
	req.Header.Del("Sec-WebSocket-Key")
	w := httptest.NewRecorder()

	_, err := Upgrade(w, req, &fakeService{}, nil)
	if !errors.Is(err, ErrMissingSecKey) {
		t.Fatalf("expected ErrMissingSecKey, got %v", err)
	}
}

func TestUpgrade_CheckOriginDenies(t *testing.T) {
	req := validUpgradeRequest()
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()

	opts := &UpgradeOptions{CheckOrigin: func(*http.Request) bool { return false }}
	_, err := Upgrade(w, req, &fakeService{}, opts)
	if !errors.Is(err, ErrOriginDenied) {
		t.Fatalf("expected ErrOriginDenied, got %v", err)
	}
}

func TestHeaderContainsToken(t *testing.T) {
	cases := []struct {
		header, token string
		want          bool
	}{
		{"websocket", "websocket", true},
		{"Upgrade", "upgrade", true},
		{"keep-alive, Upgrade", "upgrade", true},
		{"keep-alive", "upgrade", false},
	}
	for _, c := range cases {
		if got := headerContainsToken(c.header, c.token); got != c.want {
			t.Errorf("headerContainsToken(%q, %q) = %v, want %v", c.header, c.token, got, c.want)
		}
	}
}

func TestPermessageDeflateNegotiated(t *testing.T) {
	cases := []struct {
		header string
		want   bool
	}{
		{"", false},
		{"permessage-deflate", true},
		{"permessage-deflate; client_max_window_bits", true},
		{"permessage-deflate, foo", true},
		{"foo, permessage-deflate", true},
		{"x-webkit-deflate-frame", false},
	}
	for _, c := range cases {
		if got := permessageDeflateNegotiated(c.header); got != c.want {
			t.Errorf("permessageDeflateNegotiated(%q) = %v, want %v", c.header, got, c.want)
		}
	}
}

func TestCheckSameOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	req.Host = "example.com"

	if !checkSameOrigin(req) {
		t.Error("expected no Origin header to be accepted")
	}

	req.Header.Set("Origin", "http://example.com")
	if !checkSameOrigin(req) {
		t.Error("expected matching origin to be accepted")
	}

	req.Header.Set("Origin", "http://evil.example")
	if checkSameOrigin(req) {
		t.Error("expected mismatched origin to be rejected")
	}
}
