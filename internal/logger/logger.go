package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns the process logger. Development output is human readable;
// everything else is JSON on stderr.
func New(env, level string) zerolog.Logger {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if env == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	if lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && level != "" {
		log = log.Level(lvl)
	}
	return log
}

// Discard returns a logger that writes nowhere, for tests.
func Discard() zerolog.Logger {
	return zerolog.New(io.Discard)
}
