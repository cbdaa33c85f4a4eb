package port

import (
	"context"
	"time"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogEntry is one structured log line mirrored to an external log system.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Fields    map[string]interface{}
}

// LogPublisher ships log entries out of process.
type LogPublisher interface {
	// Publish buffers a single entry.
	Publish(ctx context.Context, entry LogEntry) error

	// Flush forces publication of buffered entries. Called on graceful shutdown.
	Flush(ctx context.Context) error
}
