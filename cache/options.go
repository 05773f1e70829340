package cache

import (
	"time"

	"github.com/gocfs/sthread/internal/obslog"
	"github.com/gocfs/sthread/sched"
)

// config holds Cache construction parameters, built up by Option values
// passed to New.
type config struct {
	size          int
	blockSize     int
	device        BlockDevice
	rt            *sched.Runtime
	sweepInterval time.Duration
	sweepRate     map[time.Duration]int
	logger        *obslog.Logger
	warnRates     map[time.Duration]int
}

func defaultConfig() config {
	return config{
		size:          64,
		blockSize:     4096,
		sweepInterval: time.Millisecond,
		sweepRate:     map[time.Duration]int{time.Second: 20},
		warnRates:     map[time.Duration]int{time.Second: 5},
	}
}

// Option configures a Cache at construction time.
type Option func(*config)

// WithCacheSize overrides the number of resident entries. Default 64.
func WithCacheSize(n int) Option {
	return func(c *config) { c.size = n }
}

// WithBlockSize overrides the size, in bytes, of every block. Default
// 4096; must match whatever BlockDevice is installed.
func WithBlockSize(n int) Option {
	return func(c *config) { c.blockSize = n }
}

// WithDevice installs the backing BlockDevice. Required; New panics if
// none is supplied.
func WithDevice(d BlockDevice) Option {
	return func(c *config) { c.device = d }
}

// WithSweeper installs the Runtime the background sweeper thread is
// created on, and its simulated sleep period between aging passes
// (default 1ms, matching the documented minimum of "at least one tick").
// Without this option no sweeper thread is created: no aging happens, and
// dirty entries reach the device only when evicted or when the caller
// invokes FlushAll.
func WithSweeper(rt *sched.Runtime, interval time.Duration) Option {
	return func(c *config) {
		c.rt = rt
		c.sweepInterval = interval
	}
}

// WithSweepRate overrides the catrate budget bounding how many blocks the
// sweeper writes back per time window, across all aging passes. Default
// 20 per second.
func WithSweepRate(rates map[time.Duration]int) Option {
	return func(c *config) { c.sweepRate = rates }
}

// WithLogger installs a structured logger for fetch/evict/flush tracing
// and rate-limited diagnostics. Default nil, meaning the Cache logs
// nothing.
func WithLogger(l *obslog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithDiagnosticRates overrides the catrate windows used to throttle
// repeated diagnostic categories (invalid block numbers). Default 5 per
// second per category.
func WithDiagnosticRates(rates map[time.Duration]int) Option {
	return func(c *config) { c.warnRates = rates }
}
