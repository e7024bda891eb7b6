package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// HopLog represents a single hop's outcome, recorded for diagnostic
// history (internal/hoplog persists these asynchronously; this struct is
// the shape of one record, kept in-process for the console/file sinks
// below). It carries no interpreter state (data_cache, met_folds) across
// hops — only the observable result of one hop, per spec.md's Non-goal on
// persistent cross-invocation state.
type HopLog struct {
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id"`
	TraceID       string    `json:"trace_id,omitempty"`
	SpanID        string    `json:"span_id,omitempty"`
	Script        string    `json:"script"` // first line, or a hash for long scripts
	CurrentPeerID string    `json:"current_peer_id"`
	InitPeerID    string    `json:"init_peer_id"`
	DurationMs    int64     `json:"duration_ms"`
	Success       bool      `json:"success"`
	RetCode       int       `json:"ret_code"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CallsExecuted int       `json:"calls_executed"`
	CallsDeferred int       `json:"calls_deferred"`
	NextPeerCount int       `json:"next_peer_count"`
}

// Logger handles hop logging to console and/or a file.
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the default logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the log output file.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables/disables console output.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes a hop log entry.
func (l *Logger) Log(entry *HopLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		deferred := ""
		if entry.CallsDeferred > 0 {
			deferred = fmt.Sprintf(" [deferred:%d]", entry.CallsDeferred)
		}
		next := ""
		if entry.NextPeerCount > 0 {
			next = fmt.Sprintf(" [next:%d]", entry.NextPeerCount)
		}
		fmt.Printf("[hop] %s %s %s->%s %dms [ret:%d]%s%s\n",
			status, entry.RequestID, entry.InitPeerID, entry.CurrentPeerID, entry.DurationMs, entry.RetCode, deferred, next)
		if entry.ErrorMessage != "" {
			fmt.Printf("[hop]   error: %s\n", entry.ErrorMessage)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
