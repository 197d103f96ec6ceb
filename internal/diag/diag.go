// Package diag carries non-fatal diagnostics from the resolver to the user.
package diag

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// Sink receives warnings for conditions that do not abort a resolution:
// missing modules in lenient mode, missing licenses, duplicated
// dependencies.
type Sink interface {
	Warn(msg string)
}

// LogSink writes diagnostics through a charmbracelet logger.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a sink that logs to w with the "glmod" prefix.
// Debug output is enabled when verbose is set.
func NewLogSink(w io.Writer, verbose bool) *LogSink {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return &LogSink{
		logger: log.NewWithOptions(w, log.Options{
			Prefix: "glmod",
			Level:  level,
		}),
	}
}

// Warn implements Sink.
func (s *LogSink) Warn(msg string) {
	s.logger.Warn(msg)
}

// Debugf logs progress information shown only in verbose mode.
func (s *LogSink) Debugf(format string, args ...interface{}) {
	s.logger.Debug(fmt.Sprintf(format, args...))
}

// Recorder collects warnings in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// Warn implements Sink.
func (r *Recorder) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

// Messages returns a copy of the recorded warnings in arrival order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// Discard drops every warning.
var Discard Sink = discard{}

type discard struct{}

func (discard) Warn(string) {}
