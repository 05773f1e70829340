package cache

import (
	"time"

	"github.com/gocfs/sthread/internal/obslog"
	"github.com/gocfs/sthread/sched"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Sweeper is the background cooperative thread that ages a Cache's
// reference bits and bounds its write-back traffic. It is created by
// cache.New whenever WithSweeper installs a Runtime, and it runs for as
// long as the Cache is alive, driven entirely by sched.Runtime.Sleep so
// it participates in the same vruntime accounting as every other
// thread.
type Sweeper struct {
	cache    *Cache
	rt       *sched.Runtime
	interval time.Duration
	limiter  *obslog.Throttle
	thread   *sched.Thread
	stopped  chan struct{}
}

func newSweeper(c *Cache, rt *sched.Runtime, interval time.Duration, rates map[time.Duration]int) *Sweeper {
	s := &Sweeper{
		cache:    c,
		rt:       rt,
		interval: interval,
		limiter:  obslog.NewThrottle(c.log, rates),
		stopped:  make(chan struct{}),
	}
	s.thread = rt.Create(func(arg any) any {
		s.run()
		return nil
	}, nil, 1)
	return s
}

// run is the sweeper's entry function: sleep, age, repeat, until
// stopped. A Sleep failure (ErrDeadlock — the runtime has nothing else
// runnable) ends the loop rather than spinning.
func (s *Sweeper) run() {
	for {
		select {
		case <-s.stopped:
			return
		default:
		}
		if err := s.rt.Sleep(s.interval); err != nil {
			return
		}
		s.sweep()
	}
}

func (s *Sweeper) sweep() {
	s.cache.mu.Lock()
	deferred := s.cache.ageLocked(s.limiter)
	s.cache.mu.Unlock()

	for _, blk := range deferred {
		s.cache.warn.Debug("sweeper.deferred", "write-back deferred by rate limit, retrying at next ten-cycle point",
			func(b *logiface.Builder[*stumpy.Event]) {
				b.Field("block", blk)
			})
	}
}

func (s *Sweeper) stop() {
	select {
	case <-s.stopped:
	default:
		close(s.stopped)
	}
}
