// Package obslog provides the leveled logger used across ragcore.
package obslog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is the severity of a log message.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelCritical has no distinct wire representation in either format;
	// it logs as ERROR with a critical=true field.
	LevelCritical
)

// String returns the §6 log_level names, "WARNING" for Warn to match the
// recognized option value exactly.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config string onto a Level. Unknown values fall back
// to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARNING", "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "CRITICAL":
		return LevelCritical
	default:
		return LevelInfo
	}
}

// Format selects the wire representation of log lines (§6 log_format).
type Format int

const (
	FormatConsole Format = iota
	FormatJSON
)

// ParseFormat maps a config string onto a Format. Unknown values fall
// back to FormatConsole.
func ParseFormat(s string) Format {
	if s == "json" {
		return FormatJSON
	}
	return FormatConsole
}

// Logger is the interface for logging operations across ragcore.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	Critical(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type logger struct {
	mu       *sync.Mutex
	writer   io.Writer
	minLevel Level
	format   Format
	keyvals  []any
}

// New creates a logger writing to writer at the given format, filtering
// anything below minLevel.
func New(writer io.Writer, minLevel Level, format Format) Logger {
	return &logger{
		mu:       &sync.Mutex{},
		writer:   writer,
		minLevel: minLevel,
		format:   format,
	}
}

// NewStd creates a logger writing to stdout.
func NewStd(minLevel Level, format Format) Logger {
	return New(os.Stdout, minLevel, format)
}

func (l *logger) Debug(msg string, keyvals ...any)    { l.log(LevelDebug, msg, keyvals...) }
func (l *logger) Info(msg string, keyvals ...any)     { l.log(LevelInfo, msg, keyvals...) }
func (l *logger) Warn(msg string, keyvals ...any)     { l.log(LevelWarn, msg, keyvals...) }
func (l *logger) Error(msg string, keyvals ...any)    { l.log(LevelError, msg, keyvals...) }
func (l *logger) Critical(msg string, keyvals ...any) { l.log(LevelCritical, msg, keyvals...) }

func (l *logger) With(keyvals ...any) Logger {
	merged := make([]any, 0, len(l.keyvals)+len(keyvals))
	merged = append(merged, l.keyvals...)
	merged = append(merged, keyvals...)
	return &logger{
		mu:       l.mu,
		writer:   l.writer,
		minLevel: l.minLevel,
		format:   l.format,
		keyvals:  merged,
	}
}

func (l *logger) log(level Level, msg string, keyvals ...any) {
	if level < l.minLevel {
		return
	}

	all := make([]any, 0, len(l.keyvals)+len(keyvals))
	all = append(all, l.keyvals...)
	all = append(all, keyvals...)

	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.format {
	case FormatJSON:
		l.writeJSON(level, msg, all)
	default:
		l.writeConsole(level, msg, all)
	}
}

func (l *logger) writeConsole(level Level, msg string, keyvals []any) {
	label := level
	if level == LevelCritical {
		label = LevelError
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(l.writer, "%s [%s]", timestamp, label)
	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(l.writer, " %v=%v", keyvals[i], keyvals[i+1])
	}
	if level == LevelCritical {
		fmt.Fprintf(l.writer, " critical=true")
	}
	fmt.Fprintf(l.writer, ": %s\n", msg)
}

func (l *logger) writeJSON(level Level, msg string, keyvals []any) {
	label := level
	if level == LevelCritical {
		label = LevelError
	}
	entry := map[string]any{
		"time":  time.Now().Format(time.RFC3339Nano),
		"level": label.String(),
		"msg":   msg,
	}
	for i := 0; i+1 < len(keyvals); i += 2 {
		key := fmt.Sprintf("%v", keyvals[i])
		entry[key] = keyvals[i+1]
	}
	if level == LevelCritical {
		entry["critical"] = true
	}
	enc := json.NewEncoder(l.writer)
	_ = enc.Encode(entry)
}

// nopLogger discards every message.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any)    {}
func (nopLogger) Info(string, ...any)     {}
func (nopLogger) Warn(string, ...any)     {}
func (nopLogger) Error(string, ...any)    {}
func (nopLogger) Critical(string, ...any) {}
func (n nopLogger) With(...any) Logger    { return n }

// Nop returns a logger that discards all messages.
func Nop() Logger { return nopLogger{} }
