// Package monitoring holds the process-wide diagnostic loggers.
//
// Logf is the general-purpose logger used by startup and shutdown paths.
// The three streams (ops, diag, trace) separate actionable warnings from
// tuning diagnostics and from per-frame telemetry, which is far too chatty
// for a live show and is normally disabled.
package monitoring

import (
	"io"
	"log"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var (
	streamMu    sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the ops, diag and trace streams.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	streamMu.Lock()
	defer streamMu.Unlock()
	opsLogger = newLogger(ops)
	diagLogger = newLogger(diag)
	traceLogger = newLogger(trace)
}

func newLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "", log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream (actionable warnings, errors, data loss).
func Opsf(format string, args ...interface{}) {
	streamMu.RLock()
	l := opsLogger
	streamMu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Diagf logs to the diag stream (day-to-day diagnostics, tuning context).
func Diagf(format string, args ...interface{}) {
	streamMu.RLock()
	l := diagLogger
	streamMu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Tracef logs to the trace stream (high-frequency packet/frame telemetry).
func Tracef(format string, args ...interface{}) {
	streamMu.RLock()
	l := traceLogger
	streamMu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// TraceEnabled reports whether the trace stream is configured, letting hot
// paths skip building arguments they would only throw away.
func TraceEnabled() bool {
	streamMu.RLock()
	defer streamMu.RUnlock()
	return traceLogger != nil
}
