// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// It wraps the standard log package to provide level-based filtering and formatted output.
//
// The learner, merge engine and automaton repair paths report soft warnings
// (best-effort repairs that only partially succeeded) through Warn; invariant
// violations are returned as errors and never only logged.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If training runs smoothly, it shouldn't generate any error-level logs.
	ErrorLevel
)

// ParseLevel maps a config string to a Level. Unknown values fall back to InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides leveled logging
type Logger struct {
	level  Level
	format string
	logger *log.Logger
}

var (
	mu sync.RWMutex
	// Global logger instance
	defaultLogger *Logger
)

// Init initializes the default logger with the specified level and format
func Init(level string, format string) {
	initWith(os.Stderr, ParseLevel(level), format)
}

// SetOutput redirects the default logger, keeping the current level and
// format. Without a prior Init the logger is created at WarnLevel in json
// format.
func SetOutput(w io.Writer) {
	mu.RLock()
	l, format := WarnLevel, "json"
	if defaultLogger != nil {
		l, format = defaultLogger.level, defaultLogger.format
	}
	mu.RUnlock()
	initWith(w, l, format)
}

func initWith(w io.Writer, l Level, format string) {
	// Set log flags based on format
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	mu.Lock()
	defaultLogger = &Logger{
		level:  l,
		format: format,
		logger: log.New(w, "", flags),
	}
	mu.Unlock()
}

func output(l Level, prefix, format string, args ...interface{}) {
	mu.RLock()
	dl := defaultLogger
	mu.RUnlock()
	if dl == nil || dl.level > l {
		return
	}
	_ = dl.logger.Output(3, fmt.Sprintf(prefix+format, args...))
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	output(DebugLevel, "[DEBUG] ", format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	output(InfoLevel, "[INFO] ", format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	output(WarnLevel, "[WARN] ", format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	output(ErrorLevel, "[ERROR] ", format, args...)
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	mu.RLock()
	dl := defaultLogger
	mu.RUnlock()
	if dl != nil {
		_ = dl.logger.Output(2, msg)
	} else {
		log.Fatal(msg)
	}
	os.Exit(1)
}
