// Package logging wraps zerolog behind the small field-option API used
// throughout the service.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Option attaches structured fields to a single log line.
type Option func(e *zerolog.Event)

// WithField adds a single field to a log entry
func WithField(key string, value interface{}) Option {
	return func(e *zerolog.Event) {
		e.Interface(key, value)
	}
}

// WithFields adds multiple fields to a log entry
func WithFields(fields map[string]interface{}) Option {
	return func(e *zerolog.Event) {
		e.Fields(fields)
	}
}

// WithError attaches err under the "error" key. Nil errors are ignored.
func WithError(err error) Option {
	return func(e *zerolog.Event) {
		if err != nil {
			e.Str("error", err.Error())
		}
	}
}

type Logger struct {
	zl zerolog.Logger
}

// New creates a logger on stderr with the format named by LOG_FORMAT.
func New(level Level) *Logger {
	return NewWithFormat(level, os.Getenv("LOG_FORMAT"))
}

// NewWithFormat creates a logger on stderr. Format "console" selects the human
// readable writer; anything else logs JSON.
func NewWithFormat(level Level, format string) *Logger {
	return NewWithWriter(level, formatWriter(format, os.Stderr))
}

func formatWriter(format string, out io.Writer) io.Writer {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return zerolog.ConsoleWriter{Out: out, NoColor: true, TimeFormat: time.RFC3339}
	}
	return out
}

// NewWithWriter creates a new logger that writes to w
func NewWithWriter(level Level, w io.Writer) *Logger {
	zl := zerolog.New(w).Level(level.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// With returns a child logger that carries fields on every line.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *Logger) Debug(msg string, opts ...Option) {
	l.emit(l.zl.Debug(), msg, opts)
}

func (l *Logger) Info(msg string, opts ...Option) {
	l.emit(l.zl.Info(), msg, opts)
}

func (l *Logger) Warn(msg string, opts ...Option) {
	l.emit(l.zl.Warn(), msg, opts)
}

func (l *Logger) Error(msg string, opts ...Option) {
	l.emit(l.zl.Error(), msg, opts)
}

func (l *Logger) emit(e *zerolog.Event, msg string, opts []Option) {
	if e == nil {
		return
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Msg(msg)
}
