package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/coregx/wsengine"
)

func main() {
	cmd := &cli.Command{
		Name:  "wsengine-echo",
		Usage: "stand-alone WebSocket echo server built on wsengine",
		Flags: flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := newLogger(cmd.Bool("pretty-log"))
			return run(cmd, log)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Value: ":8080",
			Usage: "address to listen on",
		},
		&cli.StringFlag{
			Name:  "path",
			Value: "/ws",
			Usage: "HTTP path that accepts the WebSocket upgrade",
		},
		&cli.IntFlag{
			Name:  "idle-timeout",
			Usage: "seconds without I/O before a connection is considered dead (0 disables heartbeats)",
		},
		&cli.BoolFlag{
			Name:  "pretty-log",
			Usage: "human-readable console logging, instead of JSON",
		},
	}
}

func newLogger(pretty bool) zerolog.Logger {
	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func run(cmd *cli.Command, log zerolog.Logger) error {
	registry := wsengine.NewRegistry(log)
	service := registry.Wrap(echoService{log: log, timeout: cmd.Int("idle-timeout")})

	mux := http.NewServeMux()
	mux.HandleFunc(cmd.String("path"), func(w http.ResponseWriter, r *http.Request) {
		opts := &wsengine.UpgradeOptions{Logger: log}
		if _, err := wsengine.Upgrade(w, r, service, opts); err != nil {
			log.Warn().Err(err).Msg("upgrade failed")
			http.Error(w, "WebSocket upgrade failed", http.StatusBadRequest)
		}
	})

	addr := cmd.String("addr")
	log.Info().Str("addr", addr).Str("path", cmd.String("path")).Msg("listening")
	return http.ListenAndServe(addr, mux)
}

// echoService sends every received message straight back to its sender.
type echoService struct {
	log     zerolog.Logger
	timeout int
}

// ConnectionTimeout enables the engine's heartbeat when the idle-timeout
// flag is set: each connection pings after half the timeout of silence and
// is dropped if the pong never comes.
func (s echoService) ConnectionTimeout() (int, bool) {
	if s.timeout <= 0 {
		return 0, false
	}
	return s.timeout, true
}

func (s echoService) Connected(conn *wsengine.Connection) {
	s.log.Info().Str("conn_id", conn.ID()).Str("remote", conn.Request().RemoteAddr).Msg("connected")
}

func (s echoService) Disconnected(conn *wsengine.Connection, reason wsengine.CloseReason) {
	s.log.Info().Str("conn_id", conn.ID()).Str("reason", reason.String()).Msg("disconnected")
}

func (echoService) ReceivedText(conn *wsengine.Connection, text string) {
	conn.Send(text)
}

func (echoService) ReceivedBinary(conn *wsengine.Connection, data []byte) {
	conn.SendBinary(data)
}
