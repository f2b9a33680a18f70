package records

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"time"

	"zapzap/internal/logging"
)

const logSinkTimeout = 2 * time.Second

// LogSink persists published log events as log entries. Write failures are
// reported to stderr and never propagate into the logging call.
type LogSink struct {
	store  *Store
	errOut io.Writer
}

// NewLogSink returns a sink backed by store.
func NewLogSink(store *Store) *LogSink {
	return &LogSink{store: store, errOut: os.Stderr}
}

// SetErrorOutput redirects write failure reports.
func (s *LogSink) SetErrorOutput(w io.Writer) {
	s.errOut = w
}

// Append implements logging.LogEventSink.
func (s *LogSink) Append(evt logging.LogEvent) {
	if s == nil || s.store == nil {
		return
	}
	fields := make(map[string]string, len(evt.Fields)+2)
	maps.Copy(fields, evt.Fields)
	if evt.Stage != "" {
		fields[logging.FieldStage] = evt.Stage
	}
	if evt.CorrelationID != "" {
		fields[logging.FieldCorrelationID] = evt.CorrelationID
	}

	ctx, cancel := context.WithTimeout(context.Background(), logSinkTimeout)
	defer cancel()
	_, err := s.store.AppendLog(ctx, LogEntry{
		Timestamp: evt.Timestamp,
		Level:     evt.Level,
		Message:   evt.Message,
		Component: evt.Component,
		VideoID:   evt.VideoID,
		Fields:    fields,
	})
	if err != nil && s.errOut != nil {
		fmt.Fprintf(s.errOut, "log sink: %v\n", err)
	}
}
