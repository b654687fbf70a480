// Package runlog configures the engine's structured logger. Every
// subsystem logs through the *slog.Logger this package builds rather than
// the log package directly, so a campaign's diagnostic output is
// consistently structured whether it's read by a human terminal or piped
// into a log aggregator.
package runlog

import (
	"io"
	"log/slog"
)

// Level names the engine's three verbosity tiers, matching the --debug /
// default / --quiet split a campaign operator expects from the CLI.
type Level int

const (
	// Quiet logs only warnings and errors.
	Quiet Level = iota
	// Normal logs one line per trial plus warnings and errors.
	Normal
	// Debug enables debug-level records and renders them with a text
	// handler.
	Debug
)

// New builds a logger writing to w. Debug renders a full text handler;
// Normal and Quiet use a JSON handler so a supervised, long-running
// campaign's log output stays machine-parseable.
func New(w io.Writer, level Level) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: slogLevel(level)}
	if level == Debug {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func slogLevel(level Level) slog.Level {
	switch level {
	case Quiet:
		return slog.LevelWarn
	case Debug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
