// Package logging builds the zerolog.Logger the proxy threads into every
// core package at construction time (supervisor, translator, noise
// handshake driver). There is no package-level global logger; callers wire
// one through explicitly.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how New builds a logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error", "fatal"; defaults
	// to "info" when empty or unrecognized.
	Level string
	// Pretty selects a colorized, human-readable console writer instead of
	// newline-delimited JSON.
	Pretty bool
}

// New builds a zerolog.Logger for the named component (e.g. "supervisor",
// "translator") honoring cfg.
func New(component string, cfg Config) zerolog.Logger {
	var writer = os.Stderr
	var base zerolog.Logger
	if cfg.Pretty {
		base = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}).
			With().Timestamp().Str("component", component).Logger()
	} else {
		base = zerolog.New(writer).
			With().Timestamp().Str("component", component).Logger()
	}
	return base.Level(parseLevel(cfg.Level))
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
