// Package runtimelog wraps charmbracelet/log to give the runtime
// structured, leveled logging: guest-fault and module-load diagnostics at
// warn, reconciliation tracing at debug. CLI-level fatal errors still go
// straight to stderr via fmt.Fprintln, the way the teacher's main.go does.
package runtimelog

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the runtime-wide leveled logger. Components start with a
// silent logger and take a real one through SetLogger rather than reaching
// for a package-level global.
type Logger = log.Logger

// New returns a logger writing to w with the given prefix (e.g. "guest",
// "appmgr"), defaulting to info level.
func New(w io.Writer, prefix string) *Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
	})
	l.SetLevel(log.InfoLevel)
	return l
}

// Default returns the runtime's stderr logger at info level, matching the
// teacher's convention of sending diagnostics to stderr and reserving
// stdout for user-facing output.
func Default(prefix string) *Logger {
	return New(os.Stderr, prefix)
}

// Discard returns a logger that drops everything, for tests.
func Discard() *Logger {
	l := New(io.Discard, "")
	l.SetLevel(log.FatalLevel + 1)
	return l
}

// SetVerbose raises l to debug level, used by cmd/runtime's --verbose flag to
// surface reconciliation tracing.
func SetVerbose(l *Logger, verbose bool) {
	if verbose {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.InfoLevel)
	}
}
