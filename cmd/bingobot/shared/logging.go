package shared

import (
	"io"

	"github.com/charmbracelet/log"
)

// NewLogger configures a charmbracelet logger writing to the given sink.
func NewLogger(w io.Writer, level string) *log.Logger {
	logger := log.New(w)
	logger.SetReportTimestamp(true)

	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}
