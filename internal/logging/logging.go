// Package logging builds the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serviceName = "ticketassist"

// New returns a JSON logger at the given level. Debug switches to a human
// readable console writer and forces the debug level. Unknown levels fall
// back to info.
func New(level string, debug bool) zerolog.Logger {
	return NewWithWriter(os.Stderr, level, debug)
}

func NewWithWriter(w io.Writer, level string, debug bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if debug {
		lvl = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Str("service", serviceName).Logger()
	log.Logger = logger
	return logger
}
