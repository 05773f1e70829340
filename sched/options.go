package sched

import (
	"math"
	"time"

	"github.com/gocfs/sthread/internal/obslog"
)

// config holds Runtime construction parameters, built up by Option values
// passed to New.
type config struct {
	tickPeriod  time.Duration
	vruntimeMax int64
	maxInc      int64
	minDelay    int
	logger      *obslog.Logger
	warnRates   map[time.Duration]int
}

func defaultConfig() config {
	return config{
		tickPeriod:  10 * time.Millisecond,
		vruntimeMax: math.MaxInt32,
		maxInc:      100,
		minDelay:    5,
		warnRates:   map[time.Duration]int{time.Second: 5},
	}
}

// Option configures a Runtime at construction time.
type Option func(*config)

// WithTickPeriod overrides the simulated timer period driving Tick.
// Default 10ms; tests typically override this to a low single-digit
// millisecond value to drive many ticks quickly.
func WithTickPeriod(d time.Duration) Option {
	return func(c *config) { c.tickPeriod = d }
}

// WithVruntimeMax overrides the overflow threshold's upper bound. Default
// math.MaxInt32, conservative headroom for a vruntime field carried as
// int64.
func WithVruntimeMax(max int64) Option {
	return func(c *config) { c.vruntimeMax = max }
}

// WithMaxInc overrides the guard band subtracted from VruntimeMax when
// checking for imminent overflow. Default 100.
func WithMaxInc(inc int64) Option {
	return func(c *config) { c.maxInc = inc }
}

// WithMinDelay overrides the number of ticks, counted from the start and
// from each preemption request, during which Tick skips the preemption
// check. Default 5.
func WithMinDelay(n int) Option {
	return func(c *config) { c.minDelay = n }
}

// WithLogger installs a structured logger for lifecycle tracing
// (creation, sleep, join, tick-driven wake) and rate-limited diagnostics.
// The default is nil, meaning the Runtime logs nothing.
func WithLogger(l *obslog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithDiagnosticRates overrides the catrate windows used to throttle
// repeated diagnostic categories (argument clamps, not-found warnings).
// Default: 5 per second per category.
func WithDiagnosticRates(rates map[time.Duration]int) Option {
	return func(c *config) { c.warnRates = rates }
}
