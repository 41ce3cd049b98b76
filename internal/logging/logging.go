// Package logging sets up the process-wide zerolog logger for the CLI.
// Packages receive their logger as a value and tag it with a component
// field themselves.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects how log lines are written.
type Options struct {
	// Verbose lowers the level to debug.
	Verbose bool
	// JSON writes one JSON object per line instead of console text.
	JSON bool
}

// Init points the global logger at stderr.
func Init(opts Options) zerolog.Logger {
	return Setup(os.Stderr, opts)
}

// Setup installs a logger writing to out as log.Logger, sets the global
// level and returns the logger. Console output is colored only when out
// is a terminal.
func Setup(out io.Writer, opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level(opts.Verbose))

	w := out
	if !opts.JSON {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    !isTerminal(out),
		}
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}

func level(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
