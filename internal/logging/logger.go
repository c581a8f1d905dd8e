// Package logging defines the structured, context-aware logger used across
// the portal. Implementations wrap slog and zerolog.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/rs/zerolog"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key-value pairs, e.g.:
//
//	log.Info(ctx, "code issued", "email", email)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}

// Format names accepted by New.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New builds the logger selected by format: "console" gives human-readable
// zerolog output, anything else JSON via slog.
func New(format string, w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	if format == FormatConsole {
		zl := zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
		return NewZerologLogger(zl)
	}
	return NewSlogLogger(slog.New(slog.NewJSONHandler(w, nil)))
}

// Nop discards everything. Handy as a default in constructors and tests.
func Nop() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
