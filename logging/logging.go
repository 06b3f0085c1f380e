// Package logging builds the process-wide zerolog root logger.
// Components never log through a global; they receive a child logger
// scoped with a component field.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a root logger at the given level. With console=true the
// output is human-readable; otherwise JSON lines for log shipping.
func New(level string, console bool) zerolog.Logger {
	var out io.Writer = os.Stderr
	if console {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything. Handy default for
// components constructed without explicit logging wiring and in tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
