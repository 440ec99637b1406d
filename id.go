package wsengine

import "github.com/lithammer/shortuuid/v4"

// newConnectionID mints a connection's stable opaque identifier: a random
// 128-bit UUIDv4 encoded as a short base57 string.
func newConnectionID() string {
	return shortuuid.New()
}
