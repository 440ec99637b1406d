package wsengine

import (
	"bufio"
	"crypto/sha1" // #nosec G505 - SHA-1 required by RFC 6455 Section 1.3
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// websocketGUID is the magic GUID from RFC 6455 Section 1.3, used to
// compute Sec-WebSocket-Accept.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// Default buffer sizes for the transport's bufio reader/writer.
const (
	defaultReadBufferSize  = 4096
	defaultWriteBufferSize = 4096
)

// UpgradeOptions configures the opening handshake. All fields are
// optional; the zero value uses sensible defaults.
type UpgradeOptions struct {
	// CheckOrigin verifies the Origin header. nil allows all origins,
	// which is only appropriate for non-browser clients.
	//
	// Return false to reject the connection with ErrOriginDenied.
	CheckOrigin func(*http.Request) bool

	// ReadBufferSize sets the size of the transport's read buffer
	// (default 4096).
	ReadBufferSize int

	// WriteBufferSize sets the size of the transport's write buffer
	// (default 4096).
	WriteBufferSize int

	// Logger receives the engine's structured log events for the
	// resulting Connection. The zero value discards everything, same as
	// DefaultLogger.
	Logger zerolog.Logger
}

// Upgrade performs the RFC 6455 Section 4 opening handshake, hijacks the
// underlying TCP connection, and returns a Connection already Attach-ed to
// a live transport. Once Upgrade returns, the Service passed in has
// already received its Connected callback and inbound frames are being
// read on a dedicated goroutine.
//
// This engine does not negotiate Sec-WebSocket-Protocol:
// callers that need subprotocol selection should inspect the request
// header themselves before calling Upgrade and reject the request if the
// client didn't offer an acceptable one.
//
//nolint:gocyclo,cyclop // handshake validation is inherently a list of sequential checks
func Upgrade(w http.ResponseWriter, r *http.Request, service Service, opts *UpgradeOptions) (*Connection, error) {
	if opts == nil {
		opts = &UpgradeOptions{}
	}
	if opts.ReadBufferSize == 0 {
		opts.ReadBufferSize = defaultReadBufferSize
	}
	if opts.WriteBufferSize == 0 {
		opts.WriteBufferSize = defaultWriteBufferSize
	}

	if r.Method != http.MethodGet {
		return nil, ErrInvalidMethod
	}
	if !headerContainsToken(r.Header.Get("Upgrade"), "websocket") {
		return nil, ErrMissingUpgrade
	}
	if !headerContainsToken(r.Header.Get("Connection"), "upgrade") {
		return nil, ErrMissingConnection
	}
	if r.Header.Get("Sec-WebSocket-Version") != "13" {
		return nil, ErrInvalidVersion
	}
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return nil, ErrMissingSecKey
	}
	if opts.CheckOrigin != nil && !opts.CheckOrigin(r) {
		return nil, ErrOriginDenied
	}

	accept := computeAcceptKey(key)

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		return nil, ErrHijackFailed
	}

	w.Header().Set("Upgrade", "websocket")
	w.Header().Set("Connection", "Upgrade")
	w.Header().Set("Sec-WebSocket-Accept", accept)
	w.WriteHeader(http.StatusSwitchingProtocols)

	netConn, bufrw, err := hijacker.Hijack()
	if err != nil {
		return nil, err
	}
	if err := bufrw.Flush(); err != nil {
		_ = netConn.Close()
		return nil, err
	}

	var reader *bufio.Reader
	if bufrw.Reader.Size() >= opts.ReadBufferSize {
		reader = bufrw.Reader
	} else {
		reader = bufio.NewReaderSize(netConn, opts.ReadBufferSize)
	}
	writer := bufio.NewWriterSize(netConn, opts.WriteBufferSize)

	logger := opts.Logger
	conn := NewConnection(r, service, logger)
	channel := newNetChannel(conn, netConn, reader, writer)
	channel.start()

	return conn, nil
}

// computeAcceptKey computes Sec-WebSocket-Accept from the client's
// Sec-WebSocket-Key, per RFC 6455 Section 1.3:
// base64(SHA-1(key + websocketGUID)).
func computeAcceptKey(key string) string {
	// #nosec G401 - SHA-1 required by RFC 6455 Section 1.3, not used for cryptographic security
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// headerContainsToken reports whether header contains token as one of its
// comma-separated, case-insensitive values (RFC 6455 Section 4.2.1).
func headerContainsToken(header, token string) bool {
	header = strings.ToLower(header)
	token = strings.ToLower(token)
	for _, h := range strings.Split(header, ",") {
		if strings.TrimSpace(h) == token {
			return true
		}
	}
	return false
}

// permessageDeflateNegotiated reports whether the client's
// Sec-WebSocket-Extensions header offers permessage-deflate.
// This engine never compresses frames; offering the extension only
// changes whether RSV1 is legal to receive set — actual decompression is
// explicitly out of scope.
func permessageDeflateNegotiated(header string) bool {
	for _, offer := range strings.Split(header, ",") {
		first, _, _ := strings.Cut(offer, ";")
		if strings.TrimSpace(first) == "permessage-deflate" {
			return true
		}
	}
	return false
}

// checkSameOrigin is a ready-made CheckOrigin that accepts same-origin
// requests and anything without an Origin header (non-browser clients).
func checkSameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return origin == scheme+"://"+r.Host
}
