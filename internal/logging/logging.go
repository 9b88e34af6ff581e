// Package logging provides the thin leveled wrapper around the standard
// library's log package that every selection-engine round-trip logs
// through. It intentionally does not pull in a structured logging
// dependency; the reference implementation's own "logger::message" calls
// were one-line-per-operation, and this mirrors that texture.
package logging

import (
	"log"
	"os"

	"github.com/google/uuid"
)

// Logger is a leveled wrapper around *log.Logger. The zero value is not
// usable; construct with New.
type Logger struct {
	base  *log.Logger
	debug bool
}

// New creates a Logger writing to os.Stderr with the given prefix.
// debug controls whether Debugf lines are emitted.
func New(prefix string, debug bool) *Logger {
	return &Logger{
		base:  log.New(os.Stderr, prefix, log.LstdFlags),
		debug: debug,
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.debug {
		l.base.Printf("DEBUG "+format, args...)
	}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.base.Printf("INFO "+format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.base.Printf("WARN "+format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.base.Printf("ERROR "+format, args...)
}

// EngineID returns a short correlation id for a selection engine's
// lifetime, so its per-operation log lines can be grouped even though
// logging itself is unstructured. Matches spec §5's "single-threaded,
// synchronous, per-request" model: one id per request/engine.
func EngineID() string {
	return uuid.NewString()[:8]
}
