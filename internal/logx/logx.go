// Package logx is the ambient, timestamped printf-style logging used across
// the scheduler and sequencer: a handful of package-level toggles, each
// gating a named severity, rather than a structured logging framework.
package logx

import (
	"log"
	"time"
)

var (
	// Debug gates per-message tracing: request/reply pairs, per-session read
	// and write errors, failed statements.
	Debug = false
	// Warn gates recoverable-but-notable conditions: a release against an
	// unregistered replica, a retried EndTx broadcast.
	Warn = true
)

func stamp() string {
	return time.Now().Format("15:04:05.000")
}

// Debugf logs a debug-level message when Debug is enabled.
func Debugf(format string, args ...interface{}) {
	if Debug {
		log.Printf(stamp()+" DEBUG "+format, args...)
	}
}

// Warnf logs a warning when Warn is enabled.
func Warnf(format string, args ...interface{}) {
	if Warn {
		log.Printf(stamp()+" WARN "+format, args...)
	}
}

// Infof always logs: listen addresses at startup, operator admin actions.
func Infof(format string, args ...interface{}) {
	log.Printf(stamp()+" INFO "+format, args...)
}
