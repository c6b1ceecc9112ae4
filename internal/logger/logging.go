// Package logger provides modifications to charmbracelet/log's default logger to be used in various files/packages.
package logger

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Setup sets the global level: debug shows everything with timestamps,
// otherwise only warnings and errors are printed.
func Setup(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
		return
	}
	log.SetLevel(log.WarnLevel)
}

// New creates a new default charm log.
func New(prefix string) *log.Logger {
	return NewTo(os.Stdout, prefix)
}

// NewTo is New writing to w.
func NewTo(w io.Writer, prefix string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		ReportCaller:    false,
		ReportTimestamp: false,
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})
}
