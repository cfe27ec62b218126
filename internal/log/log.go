// Package log provides structured, leveled logging for the orchestration
// engine. It writes newline-delimited JSON to a file and taps every record
// onto an in-memory broker so the engine's own event plumbing (or a test)
// can observe log activity without parsing the file.
package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/strategos/strategos/internal/pubsub"
)

// Level is the log severity.
type Level int

// Severity levels, lowest to highest.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Category groups related log records by the engine component that emitted
// them, matching the component names in SYSTEM OVERVIEW.
type Category string

// Categories used across the orchestration engine.
const (
	CatState     Category = "state"
	CatDepgraph  Category = "depgraph"
	CatTemplates Category = "templates"
	CatControl   Category = "control"
	CatHealth    Category = "health"
	CatLifecycle Category = "lifecycle"
	CatTmux      Category = "tmux"
	CatConfig    Category = "config"
)

// Record is one structured log entry.
type Record struct {
	Time     time.Time         `json:"time"`
	Level    Level             `json:"-"`
	LevelStr string            `json:"level"`
	Category Category          `json:"category"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Logger is a leveled, categorized writer. The zero value is not usable;
// construct with New.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel Level
	broker   *pubsub.Broker[Record]
}

// New creates a Logger writing JSON-lines to w at or above minLevel. Every
// record is also published on the logger's broker (see Broker) under topic
// "log".
func New(w io.Writer, minLevel Level) *Logger {
	return &Logger{out: w, minLevel: minLevel, broker: pubsub.New[Record]()}
}

// Broker exposes the logger's tap for subscribers.
func (l *Logger) Broker() *pubsub.Broker[Record] { return l.broker }

func kvToFields(kv []any) map[string]string {
	if len(kv) == 0 {
		return nil
	}
	fields := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		fields[key] = fmt.Sprint(kv[i+1])
	}
	return fields
}

func (l *Logger) log(level Level, cat Category, msg string, kv ...any) {
	if level < l.minLevel {
		return
	}
	rec := Record{
		Time:     time.Now(),
		Level:    level,
		LevelStr: level.String(),
		Category: cat,
		Message:  msg,
		Fields:   kvToFields(kv),
	}

	l.mu.Lock()
	if l.out != nil {
		if b, err := json.Marshal(rec); err == nil {
			_, _ = l.out.Write(append(b, '\n'))
		}
	}
	l.mu.Unlock()

	l.broker.Publish("log", rec)
}

// Debug logs a debug-level record.
func (l *Logger) Debug(cat Category, msg string, kv ...any) { l.log(LevelDebug, cat, msg, kv...) }

// Info logs an info-level record.
func (l *Logger) Info(cat Category, msg string, kv ...any) { l.log(LevelInfo, cat, msg, kv...) }

// Warn logs a warn-level record.
func (l *Logger) Warn(cat Category, msg string, kv ...any) { l.log(LevelWarn, cat, msg, kv...) }

// Error logs an error-level record.
func (l *Logger) Error(cat Category, msg string, kv ...any) { l.log(LevelError, cat, msg, kv...) }

// Fatal logs a fatal-level record. Unlike the standard library's log.Fatal
// it does not call os.Exit; callers that need process termination do so
// explicitly after a best-effort crash save (§7).
func (l *Logger) Fatal(cat Category, msg string, kv ...any) { l.log(LevelFatal, cat, msg, kv...) }

// LogLifecycle records a worker lifecycle transition. event is a short verb
// ("spawned", "killed", "completed", ...), reason is optional context, and
// extra carries additional key/value pairs.
func (l *Logger) LogLifecycle(event, reason string, extra ...any) {
	kv := append([]any{"event", event, "reason", reason}, extra...)
	l.log(LevelInfo, CatLifecycle, "lifecycle transition", kv...)
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// Default returns a process-wide Logger writing to stderr at Info level.
// Callers that need a file sink should construct their own Logger with New
// and pass it through explicitly; Default exists for tests and small tools.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLog = New(os.Stderr, LevelInfo)
	})
	return defaultLog
}
