package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel LogLevel
	levelOnce    sync.Once

	outputMu sync.Mutex
	colorize bool
)

var levelColors = map[LogLevel]*color.Color{
	LevelDebug: color.New(color.FgWhite, color.Italic),
	LevelInfo:  color.New(color.FgHiGreen),
	LevelWarn:  color.New(color.FgYellow, color.Underline),
	LevelError: color.New(color.FgHiRed, color.Bold),
}

func init() {
	colorize = term.IsTerminal(int(os.Stderr.Fd()))
}

// ParseLevel converts a LOG_LEVEL value into a LogLevel. Unknown values map to info.
func ParseLevel(s string) LogLevel {
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

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				currentLevel = LevelDebug
				return
			}
		}
		currentLevel = ParseLevel(os.Getenv("LOG_LEVEL"))
	})
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return currentLevel
}

// SetLevel overrides the level read from the environment.
func SetLevel(level LogLevel) {
	initLevel()
	currentLevel = level
}

// SetOutput redirects log output. Colors are only used when the writer is a terminal.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	log.SetOutput(w)
	colorize = false
	if f, ok := w.(*os.File); ok {
		colorize = term.IsTerminal(int(f.Fd()))
	}
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func emit(level LogLevel, format string, args ...interface{}) {
	if GetLevel() > level {
		return
	}
	tag := "[" + strings.ToUpper(level.String()) + "]"
	outputMu.Lock()
	if colorize {
		tag = levelColors[level].Sprint(tag)
	}
	outputMu.Unlock()
	log.Printf(tag+" "+format, args...)
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	emit(LevelDebug, format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	emit(LevelInfo, format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	emit(LevelWarn, format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	emit(LevelError, format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Printf is a pass-through to log.Printf for messages that should always print
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// Logger prefixes every message with a component name.
type Logger struct {
	name string
}

// Named returns a Logger for the given component, e.g. Named("probe").
func Named(name string) *Logger {
	return &Logger{name: name}
}

// Debug logs a debug message for the component.
func (l *Logger) Debug(format string, args ...interface{}) {
	emit(LevelDebug, l.prefix(format), args...)
}

// Info logs an info message for the component.
func (l *Logger) Info(format string, args ...interface{}) {
	emit(LevelInfo, l.prefix(format), args...)
}

// Warn logs a warning for the component.
func (l *Logger) Warn(format string, args ...interface{}) {
	emit(LevelWarn, l.prefix(format), args...)
}

// Error logs an error for the component.
func (l *Logger) Error(format string, args ...interface{}) {
	emit(LevelError, l.prefix(format), args...)
}

func (l *Logger) prefix(format string) string {
	return "(" + l.name + ") " + format
}
