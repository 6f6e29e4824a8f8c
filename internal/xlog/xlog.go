// Package xlog is the small logging wrapper used throughout this module
// in place of ad-hoc log.Printf calls: a structured zap logger
// underneath, with helpers that keep the "Warning: ..."/"Error: ..."
// message prefixes this codebase's callers already expect.
package xlog

import (
	"go.uber.org/zap"
)

// Logger wraps a zap.SugaredLogger with the message-prefix convention
// used across the initializer, slammap, and localmapper packages.
type Logger struct {
	s *zap.SugaredLogger
}

// New builds a production-configured Logger (JSON encoding, info level
// and above). Call Sync before process exit to flush buffered entries.
func New() (*Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{s: z.Sugar()}, nil
}

// NewDevelopment builds a human-readable, debug-level Logger suited to
// the CLI demo and local runs.
func NewDevelopment() (*Logger, error) {
	z, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &Logger{s: z.Sugar()}, nil
}

// Noop returns a Logger that discards everything, for tests and library
// callers that don't want output wired up.
func Noop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

// Warnf logs a formatted warning, matching this codebase's
// "Warning: ..." convention.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.s.Warnf("Warning: "+format, args...)
}

// Errorf logs a formatted error, matching this codebase's
// "Error: ..." convention.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.s.Errorf("Error: "+format, args...)
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.s.Infof(format, args...)
}

// With returns a Logger with the given structured key/value pairs
// attached to every subsequent entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{s: l.s.With(keysAndValues...)}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.s.Sync()
}
