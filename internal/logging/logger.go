package logging

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// New returns a logger that writes timestamped lines to w. Inside a detached
// task process w is the task's log file, so supervisor and watcher output
// ends up next to the command's own output.
func New(w io.Writer, prefix string, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          prefix,
		Level:           level,
	})
}

// Discard returns a logger that drops everything. Tests use it.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
