// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New creates a console logger. debug forces the debug level regardless of level.
func New(level string, debug bool) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, debug)
}

// NewWithWriter is New with an explicit output.
func NewWithWriter(w io.Writer, level string, debug bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	lvl := parseLevel(level)
	if debug {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", "freightbot").
		Logger().
		Level(lvl)
}

func parseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
