// Package logger provides leveled, rank-tagged logging for a
// simulation. The driver logs through the unranked default; every rank
// endpoint derives its own tagged logger so interleaved messages from
// concurrent ranks stay attributable.
package logger

import (
	"fmt"
	"log"
	"os"
)

// Level is the minimum severity a logger lets through.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (lv Level) String() string {
	switch lv {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	}
	return "ERROR"
}

// Logger writes to stderr; simulation results stay on stdout so the
// benchmark columns remain machine-parseable.
type Logger struct {
	level Level
	rank  int // -1 for the driver, >= 0 for a rank endpoint
	out   *log.Logger
}

var defaultLogger = New(Info)

// New creates an unranked (driver) logger.
func New(level Level) *Logger {
	return &Logger{
		level: level,
		rank:  -1,
		out:   log.New(os.Stderr, "", log.Ldate|log.Ltime),
	}
}

// SetLevel sets the global log level.
func SetLevel(level Level) {
	defaultLogger.level = level
}

// ForRank derives a logger tagged with a rank id. Derived loggers
// share the parent's sink and level.
func (l *Logger) ForRank(rank int) *Logger {
	return &Logger{level: l.level, rank: rank, out: l.out}
}

// ForRank derives a rank-tagged logger from the default.
func ForRank(rank int) *Logger {
	return defaultLogger.ForRank(rank)
}

// Debugf logs a debug message on the default logger.
func Debugf(format string, args ...interface{}) {
	defaultLogger.Debugf(format, args...)
}

// Infof logs an info message on the default logger.
func Infof(format string, args ...interface{}) {
	defaultLogger.Infof(format, args...)
}

// Warnf logs a warning on the default logger.
func Warnf(format string, args ...interface{}) {
	defaultLogger.Warnf(format, args...)
}

// Errorf logs an error on the default logger.
func Errorf(format string, args ...interface{}) {
	defaultLogger.Errorf(format, args...)
}

// Debugf logs a debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(Debug, format, args...)
}

// Infof logs an info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(Info, format, args...)
}

// Warnf logs a warning
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(Warn, format, args...)
}

// Errorf logs an error
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(Error, format, args...)
}

func (l *Logger) log(lv Level, format string, args ...interface{}) {
	if lv < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.rank >= 0 {
		l.out.Printf("[%s] rank %d: %s", lv, l.rank, msg)
		return
	}
	l.out.Printf("[%s] %s", lv, msg)
}
