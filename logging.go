package wsengine

import "github.com/rs/zerolog"

// DefaultLogger discards every event. Callers that don't care about engine
// logging (tests, simple demos) can pass this to NewConnection/NewRegistry
// instead of wiring up their own zerolog.Logger.
var DefaultLogger = zerolog.Nop()

// connLogger returns a child logger with the connection's id attached, so
// every line a Connection emits is attributable without the caller having
// to thread the id through by hand.
func connLogger(base zerolog.Logger, id string) zerolog.Logger {
	return base.With().Str("conn_id", id).Logger()
}
