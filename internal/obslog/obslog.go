// Package obslog wires up the structured logger used throughout the
// scheduler and cache: a logiface.Logger backed by the stumpy JSON
// encoder, plus a catrate-bounded helper for diagnostics that would
// otherwise flood output when repeated (argument clamps, not-found
// lookups, sweeper write-back deferrals).
package obslog

import (
	"io"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the concrete structured-logger type passed around the
// module. Every package that logs takes a *Logger rather than an
// interface, matching how the event type is fixed at the process level.
type Logger = logiface.Logger[*stumpy.Event]

// New constructs a Logger that writes newline-delimited JSON to w, with
// the level and message fields named the way the rest of the module's
// log consumers expect.
func New(w io.Writer, level logiface.Level) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(w),
			stumpy.WithLevelField("level"),
			stumpy.WithMessageField("msg"),
		),
		stumpy.L.WithLevel(level),
	)
}

// Throttle pairs a Logger with a catrate.Limiter keyed by an arbitrary
// diagnostic category, so repeated log sites (one per tick, one per
// sweeper pass) cannot dominate output under sustained load.
type Throttle struct {
	log     *Logger
	limiter *catrate.Limiter
}

// NewThrottle builds a Throttle. rates has the same shape catrate.NewLimiter
// expects: a set of windows each capped at a maximum event count.
func NewThrottle(log *Logger, rates map[time.Duration]int) *Throttle {
	return &Throttle{log: log, limiter: catrate.NewLimiter(rates)}
}

// Allow reports whether a diagnostic tagged with category may be emitted
// right now, consuming one unit of the category's budget if so.
func (t *Throttle) Allow(category any) bool {
	if t == nil || t.limiter == nil {
		return true
	}
	_, ok := t.limiter.Allow(category)
	return ok
}

// Debug emits a debug-level log line tagged with category, unless the
// category's rate budget is currently exhausted. fields may be nil. Use
// for ordinary lifecycle tracing (thread create/sleep/join, tick wake).
func (t *Throttle) Debug(category any, msg string, fields func(b *logiface.Builder[*stumpy.Event])) {
	t.emit(category, msg, fields, func() *logiface.Builder[*stumpy.Event] { return t.log.Debug() })
}

// Warning emits a warning-level log line tagged with category, unless the
// category's rate budget is currently exhausted. fields may be nil. Use
// for "warn, continue" and "warn, return failure" diagnostics — clamped
// arguments, not-found lookups, synchronization misuse — as distinct from
// ordinary lifecycle tracing, which stays on Debug.
func (t *Throttle) Warning(category any, msg string, fields func(b *logiface.Builder[*stumpy.Event])) {
	t.emit(category, msg, fields, func() *logiface.Builder[*stumpy.Event] { return t.log.Warning() })
}

func (t *Throttle) emit(category any, msg string, fields func(b *logiface.Builder[*stumpy.Event]), build func() *logiface.Builder[*stumpy.Event]) {
	if t == nil || t.log == nil || !t.Allow(category) {
		return
	}
	b := build()
	if fields != nil {
		fields(b)
	}
	b.Log(msg)
}
