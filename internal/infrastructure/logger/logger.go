package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/haxorport/relay-tunnel/internal/domain/port"
)

// Level defines the logging level
type Level int32

const (
	// LevelDebug is the level for debug messages
	LevelDebug Level = iota
	// LevelInfo is the level for informational messages
	LevelInfo
	// LevelWarn is the level for warning messages
	LevelWarn
	// LevelError is the level for error messages
	LevelError
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to Level
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is an implementation of port.Logger.
// It is shared by every connection goroutine, so the level is atomic.
type Logger struct {
	logger *log.Logger
	level  atomic.Int32
	closer io.Closer
}

// NewLogger creates a new Logger instance
func NewLogger(writer io.Writer, level string) *Logger {
	l := &Logger{logger: log.New(writer, "", 0)}
	l.level.Store(int32(ParseLevel(level)))
	if closer, ok := writer.(io.Closer); ok && writer != os.Stdout && writer != os.Stderr {
		l.closer = closer
	}
	return l
}

// SetLevel changes the logging level
func (l *Logger) SetLevel(level string) {
	l.level.Store(int32(ParseLevel(level)))
}

// Level returns the current level
func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// log records a message with a specific level
func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.Level() {
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05.000")

	var message string
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	} else {
		message = format
	}

	l.logger.Printf("[%s] %s %s", now, level.String(), message)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// NewFileLogger creates a logger that writes to console and appends to a file
func NewFileLogger(console io.Writer, filePath string, level string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := NewLogger(io.MultiWriter(console, file), level)
	l.closer = file
	return l, nil
}

// Ensure Logger implements port.Logger
var _ port.Logger = (*Logger)(nil)
