// SPDX-License-Identifier: AGPL-3.0-only
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel controls which messages a Logger emits.
type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	Fatal
)

// String returns the uppercase name of the level.
func (l LogLevel) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string to a LogLevel, defaulting to Info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	case "fatal":
		return Fatal
	default:
		return Info
	}
}

// Options configures a Logger.
type Options struct {
	// Output receives formatted log lines. Defaults to os.Stderr so that
	// stdio transports never see log output on stdout.
	Output io.Writer
	Level  LogLevel
}

// Logger is a small leveled logger with optional static fields.
type Logger struct {
	mu     *sync.Mutex
	out    io.Writer
	level  LogLevel
	fields map[string]interface{}
}

// New creates a Logger from the given options.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return &Logger{
		mu:    &sync.Mutex{},
		out:   out,
		level: opts.Level,
	}
}

// FileLogger creates a Logger appending to the file at path.
func FileLogger(path string, level LogLevel) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return New(Options{Output: f, Level: level}), nil
}

// WithField returns a Logger that includes key=value on every line.
// The receiver is not modified.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{mu: l.mu, out: l.out, level: l.level, fields: fields}
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)

	var b strings.Builder
	b.WriteString(time.Now().Format(time.RFC3339))
	b.WriteString(" [")
	b.WriteString(level.String())
	b.WriteString("] ")
	b.WriteString(msg)

	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, l.fields[k])
		}
	}
	b.WriteString("\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, b.String())
}

// Debugf logs at Debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(Debug, format, args...)
}

// Infof logs at Info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(Info, format, args...)
}

// Warnf logs at Warn level.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(Warn, format, args...)
}

// Errorf logs at Error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(Error, format, args...)
}

// Fatalf logs at Fatal level and exits the process.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(Fatal, format, args...)
	os.Exit(1)
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// SetDefaultLogger replaces the process-wide default logger.
func SetDefaultLogger(logger *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}

// GetDefaultLogger returns the process-wide default logger, creating a
// stderr Info logger on first use.
func GetDefaultLogger() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(Options{})
	}
	return defaultLogger
}
