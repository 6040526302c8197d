package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// elapsed tracks the start time of a command and logs completion with the
// elapsed duration. Not safe for concurrent use.
type elapsed struct {
	logger *log.Logger
	start  time.Time
}

func newElapsed(l *log.Logger) *elapsed {
	return &elapsed{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, rounded to the millisecond.
// Example output: "Generated dataset (1.234s)"
func (e *elapsed) done(msg string) {
	e.logger.Infof("%s (%s)", msg, time.Since(e.start).Round(time.Millisecond))
}
