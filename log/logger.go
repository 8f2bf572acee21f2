// Package log provides structured logging using zerolog. The database
// layer reports compiled queries through it; the query core itself never
// logs.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/genesysflow/go-fluentsql/contracts"
)

// Logger is the default logger implementation using zerolog.
type Logger struct {
	logger zerolog.Logger
	fields map[string]any
}

// New creates a Logger with pretty console output.
func New(writers ...io.Writer) *Logger {
	var writer io.Writer
	if len(writers) > 0 {
		writer = writers[0]
	} else {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	return &Logger{
		logger: zerolog.New(writer).With().Timestamp().Logger(),
		fields: make(map[string]any),
	}
}

// NewJSON creates a Logger with JSON output.
func NewJSON(writers ...io.Writer) *Logger {
	var writer io.Writer
	if len(writers) > 0 {
		writer = writers[0]
	} else {
		writer = os.Stdout
	}
	return &Logger{
		logger: zerolog.New(writer).With().Timestamp().Logger(),
		fields: make(map[string]any),
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...any) {
	l.log(zerolog.DebugLevel, msg, fields)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...any) {
	l.log(zerolog.InfoLevel, msg, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...any) {
	l.log(zerolog.WarnLevel, msg, fields)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...any) {
	l.log(zerolog.ErrorLevel, msg, fields)
}

func (l *Logger) log(level zerolog.Level, msg string, fields []any) {
	event := l.logger.WithLevel(level)
	for k, v := range l.fields {
		event = event.Interface(k, v)
	}
	// Inline fields are alternating key/value pairs.
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			event = event.Interface(key, fields[i+1])
		}
	}
	event.Msg(msg)
}

// WithField returns a logger with a field attached to every entry.
func (l *Logger) WithField(key string, value any) contracts.Logger {
	newFields := make(map[string]any, len(l.fields)+1)
	for k, v := range l.fields {
		newFields[k] = v
	}
	newFields[key] = value
	return &Logger{
		logger: l.logger,
		fields: newFields,
	}
}

// SetLevel sets the minimum level the logger emits.
func (l *Logger) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}
