package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
)

type Logger struct {
	logger *log.Logger
	level  Level

	mu        sync.RWMutex
	publisher port.LogPublisher
}

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter создает logger, пишущий в произвольный writer
func NewWithWriter(level string, w io.Writer) *Logger {
	return &Logger{
		logger: log.New(w, "", 0),
		level:  parseLevel(level),
	}
}

func parseLevel(level string) Level {
	switch level {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetLogPublisher дублирует записи во внешнюю систему логов (CloudWatch Logs)
func (l *Logger) SetLogPublisher(publisher port.LogPublisher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publisher = publisher
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if l.level <= DEBUG {
		l.log(port.LogLevelDebug, msg, args...)
	}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	if l.level <= INFO {
		l.log(port.LogLevelInfo, msg, args...)
	}
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	if l.level <= WARN {
		l.log(port.LogLevelWarn, msg, args...)
	}
}

func (l *Logger) Error(msg string, err error, args ...interface{}) {
	if l.level <= ERROR {
		if err != nil {
			args = append(args, "error", err.Error())
		}
		l.log(port.LogLevelError, msg, args...)
	}
}

func (l *Logger) log(level port.LogLevel, msg string, args ...interface{}) {
	now := time.Now()
	timestamp := now.Format("2006-01-02 15:04:05")
	message := fmt.Sprintf("[%s] [%s] %s", timestamp, level, msg)

	if len(args) > 0 {
		message += " |"
		for i := 0; i < len(args); i += 2 {
			if i+1 < len(args) {
				message += fmt.Sprintf(" %v=%v", args[i], args[i+1])
			}
		}
	}

	l.logger.Println(message)

	l.mu.RLock()
	publisher := l.publisher
	l.mu.RUnlock()
	if publisher == nil {
		return
	}

	entry := port.LogEntry{
		Timestamp: now,
		Level:     level,
		Message:   msg,
		Fields:    fields(args),
	}
	// Ошибки публикации не должны ломать основной лог
	_ = publisher.Publish(context.Background(), entry)
}

func fields(args []interface{}) map[string]interface{} {
	if len(args) < 2 {
		return nil
	}
	result := make(map[string]interface{}, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		result[fmt.Sprint(args[i])] = args[i+1]
	}
	return result
}
