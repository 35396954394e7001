// Package log provides zerolog helpers shared across the module. Loggers
// travel through context; code that receives a context without a logger gets
// a disabled one, so library callers pay nothing unless they opt in.
package log

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New creates a logger writing structured JSON to w at the given level.
// Unknown level strings fall back to info.
func New(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// NewConsole creates a human-readable logger for examples and local runs.
func NewConsole(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// NewContext returns ctx carrying the logger.
func NewContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// FromCtx extracts the logger from ctx. Contexts without a logger yield a
// disabled one.
func FromCtx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
