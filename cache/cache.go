// Package cache implements a fixed-size, write-back block cache sitting
// between a filesystem-shaped caller and a BlockDevice, with
// clock-variant (NRU) victim selection and a background sweeper that
// ages reference bits and bounds write-back traffic.
package cache

import (
	"fmt"
	"sync"

	"github.com/gocfs/sthread/internal/obslog"
)

// entry is one resident cache slot: V (valid), R (referenced since the
// last sweep), M (modified since the last write-back), a sweeper-owned
// aging counter, the resident block number, and its bytes.
type entry struct {
	valid    bool
	ref      bool
	modified bool
	counter  int
	blockNo  int64
	data     []byte
}

// Cache is a fixed-size page cache. All methods are safe for concurrent
// use; the Runtime supplied via WithSweeper calls into Cache from its own
// scheduled thread the same way any other caller would.
type Cache struct {
	mu      sync.Mutex
	cfg     config
	entries []entry
	device  BlockDevice

	log     *obslog.Logger
	warn    *obslog.Throttle
	sweeper *Sweeper
}

// New allocates a Cache per the supplied Options. Panics if no
// BlockDevice was installed via WithDevice — a cache with nothing to
// fetch from cannot serve a miss, which the options API treats as a
// construction-time programming error rather than a runtime condition.
func New(opts ...Option) *Cache {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.device == nil {
		panic("cache: New requires WithDevice")
	}

	entries := make([]entry, cfg.size)
	for i := range entries {
		entries[i].data = make([]byte, cfg.blockSize)
	}

	c := &Cache{
		cfg:     cfg,
		entries: entries,
		device:  cfg.device,
		log:     cfg.logger,
	}
	c.warn = obslog.NewThrottle(cfg.logger, cfg.warnRates)

	if cfg.rt != nil {
		c.sweeper = newSweeper(c, cfg.rt, cfg.sweepInterval, cfg.sweepRate)
	}
	return c
}

// diag logs a warn-class diagnostic (an invalid argument), as distinct
// from trace's ordinary lifecycle tracing.
func (c *Cache) diag(category, msg string) {
	c.warn.Warning(category, msg, nil)
}

// Read copies blk's current bytes into out, fetching it from the
// backing device first if not already resident. out must be exactly the
// configured block size.
func (c *Cache) Read(blk int64, out []byte) error {
	if blk < 0 {
		c.diag("read.blockno", "negative block number")
		return ErrInvalidBlockNumber
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.find(blk)
	if idx < 0 {
		var err error
		idx, err = c.fetch(blk)
		if err != nil {
			return err
		}
	}
	e := &c.entries[idx]
	e.ref = true
	copy(out, e.data)
	return nil
}

// Write copies in into blk's resident bytes, marking the entry referenced
// and modified, fetching it first if not already resident. in must be
// exactly the configured block size.
func (c *Cache) Write(blk int64, in []byte) error {
	if blk < 0 {
		c.diag("write.blockno", "negative block number")
		return ErrInvalidBlockNumber
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.find(blk)
	if idx < 0 {
		var err error
		idx, err = c.fetch(blk)
		if err != nil {
			return err
		}
	}
	e := &c.entries[idx]
	copy(e.data, in)
	e.ref = true
	e.modified = true
	return nil
}

// Invalidate discards any resident entry for blk without writing it
// back; any unwritten modifications are lost, as documented.
func (c *Cache) Invalidate(blk int64) error {
	if blk < 0 {
		c.diag("invalidate.blockno", "negative block number")
		return ErrInvalidBlockNumber
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := c.find(blk); idx >= 0 {
		c.entries[idx].valid = false
	}
	return nil
}

// FlushAll writes every valid, modified entry back to the device, then
// invalidates every entry — valid or not. A subsequent read of any block
// therefore always re-fetches from the device.
func (c *Cache) FlushAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushAllLocked()
}

func (c *Cache) flushAllLocked() error {
	for i := range c.entries {
		e := &c.entries[i]
		if e.valid && e.modified {
			if err := c.device.WriteBlock(e.blockNo, e.data); err != nil {
				return fmt.Errorf("cache: flush block %d: %w", e.blockNo, err)
			}
			e.modified = false
		}
		e.valid = false
	}
	return nil
}

// find returns the index of the resident, valid entry for blk, or -1.
// Callers must hold mu.
func (c *Cache) find(blk int64) int {
	for i := range c.entries {
		if c.entries[i].valid && c.entries[i].blockNo == blk {
			return i
		}
	}
	return -1
}

// findVictim chooses a slot to evict, in the documented five-step
// cascade: an invalid slot; else R=0 ∧ M=0; else R=0; else M=0; else
// slot 0 as a last resort, dirty or not. Callers must hold mu.
func (c *Cache) findVictim() int {
	for i := range c.entries {
		if !c.entries[i].valid {
			return i
		}
	}
	for i := range c.entries {
		if !c.entries[i].ref && !c.entries[i].modified {
			return i
		}
	}
	for i := range c.entries {
		if !c.entries[i].ref {
			return i
		}
	}
	for i := range c.entries {
		if !c.entries[i].modified {
			return i
		}
	}
	return 0
}

// fetch writes back the chosen victim if dirty, reads blk into its slot,
// and marks it valid/referenced/clean. Callers must hold mu.
func (c *Cache) fetch(blk int64) (int, error) {
	idx := c.findVictim()
	e := &c.entries[idx]

	if e.valid && e.modified {
		if err := c.device.WriteBlock(e.blockNo, e.data); err != nil {
			return -1, fmt.Errorf("cache: write back block %d: %w", e.blockNo, err)
		}
	}

	if err := c.device.ReadBlock(blk, e.data); err != nil {
		return -1, fmt.Errorf("cache: fetch block %d: %w", blk, err)
	}
	e.blockNo = blk
	e.valid = true
	e.ref = true
	e.modified = false
	e.counter = 0

	c.trace("fetch", idx)

	if c.find(blk) != idx {
		c.fatal("fetch", blk)
	}
	return idx, nil
}

// fatal logs at Critical level, if a logger is installed, then panics.
// Reached only if an invariant already broke (victim selection picked a
// slot fetch did not actually land the block in).
func (c *Cache) fatal(op string, blk int64) {
	if c.log != nil {
		c.log.Crit().Str("op", op).Field("block", blk).Log("cache invariant violated")
	}
	panic(fmt.Errorf("%w: block %d", ErrCacheMiss, blk))
}

func (c *Cache) trace(event string, idx int) {
	if c.log == nil {
		return
	}
	e := &c.entries[idx]
	c.log.Debug().
		Str("event", event).
		Field("slot", idx).
		Field("block", e.blockNo).
		Log(event)
}

// Dump logs the state of every cache entry at Info level: slot index,
// validity, reference/modified bits, aging counter, and block number. A
// no-op if no logger was configured.
func (c *Cache) Dump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.log == nil {
		return
	}
	for i := range c.entries {
		e := &c.entries[i]
		c.log.Info().
			Field("slot", i).
			Field("valid", e.valid).
			Field("ref", e.ref).
			Field("modified", e.modified).
			Field("counter", e.counter).
			Field("block", e.blockNo).
			Log("cache entry")
	}
}

// ageLocked runs one sweeper aging step against every resident entry:
// advance its counter, clear R every 4 cycles, write back dirty entries
// every 10 cycles (bounded by limiter), and roll the counter over at 20.
// Callers must hold mu. Returns the block numbers deferred by limiter
// exhaustion, left dirty until the entry's next ten-cycle write-back point.
func (c *Cache) ageLocked(limiter *obslog.Throttle) (deferred []int64) {
	for i := range c.entries {
		e := &c.entries[i]
		if !e.valid {
			continue
		}
		e.counter++
		if e.counter%4 == 0 {
			e.ref = false
		}
		if e.counter%10 == 0 && e.modified {
			if limiter != nil && !limiter.Allow("sweeper.flush") {
				deferred = append(deferred, e.blockNo)
			} else if err := c.device.WriteBlock(e.blockNo, e.data); err == nil {
				e.modified = false
			}
		}
		if e.counter == 20 {
			e.counter = 0
		}
	}
	return deferred
}

// Free stops the background sweeper thread, if one was created via
// WithSweeper. Safe to call on a Cache with no sweeper.
func (c *Cache) Free() {
	if c.sweeper != nil {
		c.sweeper.stop()
	}
}
