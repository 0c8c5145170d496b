package snkv

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// newLogger builds the store's logger the way cuemby-warren wires zerolog:
// one console writer when enabled, a discarding no-op logger otherwise, so
// call sites never need to branch on whether logging is on.
func newLogger(enabled bool, level zerolog.Level) zerolog.Logger {
	var w io.Writer = io.Discard
	if enabled {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).With().Timestamp().Logger().Level(level)
}
