// Package logging builds the slog loggers used by the psp commands.
package logging

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
)

// New returns a text logger writing records at level or above to w. Every
// record carries the session id of the current run and the component name.
func New(w io.Writer, level slog.Level, component string) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// timestamps only add noise to terminal output
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
	return slog.New(h).With("session", SessionID(), "component", component)
}

var sessionID = uuid.NewString()

// SessionID identifies the current process in log records.
func SessionID() string {
	return sessionID
}

// Level maps the verbosity flag to a level.
func Level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
