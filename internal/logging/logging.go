// Package logging configures the process-wide zerolog logger and hands out
// component-scoped child loggers.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger. Output goes to stderr in console form
// so command output on stdout stays machine-readable. The level parameter
// accepts zerolog level names (debug, info, warn, error); verbose forces
// debug.
func Setup(level string, verbose bool) error {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}

	log.Logger = New(os.Stderr).Level(lvl)
	return nil
}

// New builds a console-format logger writing to w.
func New(w io.Writer) zerolog.Logger {
	writer := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	return zerolog.New(writer).With().Timestamp().Logger()
}

// Component creates a child logger carrying a component identifier under
// the "cmp" key.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}
