package core

import (
	"fmt"
	"log"
	"os"
)

// Logger provides leveled logging for medlink components.
// This abstraction allows swapping logging implementations.
type Logger interface {
	// Error logs an error message
	Error(args ...interface{})

	// Errorf logs a formatted error message
	Errorf(format string, args ...interface{})

	// Warn logs a warning message
	Warn(args ...interface{})

	// Warnf logs a formatted warning message
	Warnf(format string, args ...interface{})

	// Info logs an informational message
	Info(args ...interface{})

	// Infof logs a formatted informational message
	Infof(format string, args ...interface{})

	// Debug logs a debug message
	Debug(args ...interface{})

	// Debugf logs a formatted debug message
	Debugf(format string, args ...interface{})
}

// Level controls the minimum severity a defaultLogger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// defaultLogger implements Logger using Go's standard log package.
// Can be swapped with other logging implementations (e.g., structured loggers).
type defaultLogger struct {
	min Level
	out *log.Logger
	err *log.Logger
}

// NewDefaultLogger creates a logger that emits Info and above.
func NewDefaultLogger() Logger {
	return NewLeveledLogger(LevelInfo)
}

// NewLeveledLogger creates a logger that emits min and above.
func NewLeveledLogger(min Level) Logger {
	return &defaultLogger{
		min: min,
		out: log.New(os.Stdout, "", log.LstdFlags),
		err: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *defaultLogger) emit(lv Level, tag, msg string) {
	if lv < l.min {
		return
	}
	dst := l.out
	if lv >= LevelWarn {
		dst = l.err
	}
	dst.Output(2, tag+" "+msg)
}

func (l *defaultLogger) Error(args ...interface{}) {
	l.emit(LevelError, "[ERROR]", fmt.Sprint(args...))
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.emit(LevelError, "[ERROR]", fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Warn(args ...interface{}) {
	l.emit(LevelWarn, "[WARN]", fmt.Sprint(args...))
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.emit(LevelWarn, "[WARN]", fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Info(args ...interface{}) {
	l.emit(LevelInfo, "[INFO]", fmt.Sprint(args...))
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.emit(LevelInfo, "[INFO]", fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debug(args ...interface{}) {
	l.emit(LevelDebug, "[DEBUG]", fmt.Sprint(args...))
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.emit(LevelDebug, "[DEBUG]", fmt.Sprintf(format, args...))
}

// nopLogger discards everything. Useful in tests.
type nopLogger struct{}

// NewNopLogger returns a Logger that discards all output.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Error(args ...interface{})                 {}
func (nopLogger) Errorf(format string, args ...interface{}) {}
func (nopLogger) Warn(args ...interface{})                  {}
func (nopLogger) Warnf(format string, args ...interface{})  {}
func (nopLogger) Info(args ...interface{})                  {}
func (nopLogger) Infof(format string, args ...interface{})  {}
func (nopLogger) Debug(args ...interface{})                 {}
func (nopLogger) Debugf(format string, args ...interface{}) {}
