// Package sched implements a cooperative, CFS-style user-level thread
// runtime: creation, exit, yield, sleep, join, mutexes, and monitors,
// dispatched by vruntime order and preempted on a periodic tick.
package sched

import (
	"sync"
	"time"

	"github.com/gocfs/sthread/internal/corectx"
	"github.com/gocfs/sthread/internal/obslog"
	"github.com/gocfs/sthread/internal/queue"
	"github.com/gocfs/sthread/internal/rbtree"
)

// Runtime owns the process-wide scheduling state: the runnable set, every
// wait container, the clock, and whichever thread is currently active.
// Every exported method locks mu for the duration of its own bookkeeping
// and unlocks immediately before handing control to another thread via
// corectx.Switch, mirroring the interrupt-mask discipline the tick source
// and the active thread would otherwise need raw hardware support for.
type Runtime struct {
	mu sync.Mutex

	cfg config

	clock   int64
	nextID  uint64
	nextSeq uint64

	// mutexSeq and monitorSeq number mutexes and monitors separately, in
	// creation order, purely for Dump's diagnostic labels — they mirror
	// the per-type "Mutex N" / "Monitor N" numbering.
	mutexSeq   int
	monitorSeq int

	tree    *rbtree.Tree
	sleepQ  *queue.Queue[*Thread]
	joinQ   *queue.Queue[*Thread]
	zombies *queue.Queue[*Thread]
	dead    *queue.Queue[*Thread]
	blocked *queue.BlockedSet[*Thread]

	active     *Thread
	delay      int
	preempt    bool
	terminated bool

	log  *obslog.Logger
	warn *obslog.Throttle
}

// New creates the runtime and a thread control block (id 1, priority 1,
// nice 0) representing the calling goroutine as the initial active
// thread, exactly as a fresh scheduler's init routine creates a TCB for
// whoever called it. The caller's own goroutine becomes thread 1; it must
// call Runtime methods (Yield, Create, ...) the same way any other thread
// would, since it is now a fully-fledged participant in the runtime it
// just created.
func New(opts ...Option) *Runtime {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	rt := &Runtime{
		cfg:     cfg,
		clock:   1,
		nextID:  2,
		nextSeq: 1,
		tree:    rbtree.New(),
		sleepQ:  queue.New[*Thread](),
		joinQ:   queue.New[*Thread](),
		zombies: queue.New[*Thread](),
		dead:    queue.New[*Thread](),
		blocked: queue.NewBlockedSet[*Thread](),
		log:     cfg.logger,
	}
	rt.warn = obslog.NewThrottle(cfg.logger, cfg.warnRates)
	rt.active = &Thread{
		id:       1,
		seq:      0,
		priority: 1,
		nice:     0,
		ctx:      corectx.NewBlank(),
		st:       stateRunning,
	}
	return rt
}

// Active returns the currently running thread.
func (rt *Runtime) Active() *Thread {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.active
}

// Clock returns the current tick count.
func (rt *Runtime) Clock() int64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.clock
}

// Terminated reports whether the last runnable thread has already exited
// (the runtime equivalent of process teardown).
func (rt *Runtime) Terminated() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.terminated
}

// RunnableLen reports how many threads are currently in the runnable set,
// excluding the active thread.
func (rt *Runtime) RunnableLen() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.tree.Len()
}

// diag logs a warn-class diagnostic: a clamped argument, a not-found
// lookup, or similar "warn, continue"/"warn, return failure" condition,
// as distinct from trace's ordinary lifecycle tracing.
func (rt *Runtime) diag(category, msg string) {
	rt.warn.Warning(category, msg, nil)
}

func (rt *Runtime) trace(event string, th *Thread) {
	if rt.log == nil {
		return
	}
	b := rt.log.Debug().Field("event", event).Field("clock", rt.clock)
	if th != nil {
		b = b.Field("tid", th.id).Field("vruntime", th.vruntime)
	}
	b.Log(event)
}

// popRunnable removes and returns the runnable set's minimum, or nil if
// it is empty. Callers must hold mu.
func (rt *Runtime) popRunnable() *Thread {
	v, ok := rt.tree.RemoveMin()
	if !ok {
		return nil
	}
	th := v.(*Thread)
	th.treeHandle = 0
	return th
}

func (rt *Runtime) insertRunnable(th *Thread) {
	th.st = stateRunnable
	th.treeHandle = rt.tree.Insert(rbtree.Key{Vruntime: th.vruntime, Seq: th.seq}, th)
}

func (rt *Runtime) treeContainsID(id uint64) bool {
	found := false
	rt.tree.VisitInOrder(func(_ rbtree.Key, v any) {
		if v.(*Thread).id == id {
			found = true
		}
	})
	return found
}

// dispatch hands control to next, unlocking mu immediately before the
// context switch per the interrupt-mask discipline: the new thread's own
// resumption is responsible for re-acquiring mu if it needs to observe
// runtime state afterward. Callers must hold mu on entry.
func (rt *Runtime) dispatch(next *Thread) {
	prev := rt.active
	rt.active = next
	next.st = stateRunning
	rt.mu.Unlock()
	corectx.Switch(prev.ctx, next.ctx)
}

// checkpoint honors a tick-driven preemption request recorded by Tick,
// performing the same pop-reinsert-switch sequence Yield does, before the
// caller's own requested operation proceeds. Go has no way to forcibly
// interrupt a running goroutine the way a hardware timer interrupts a
// CPU, so the actual handoff from a pending tick-driven preemption is
// deferred to the next cooperative call (Yield, Sleep, Join, Lock, Wait)
// rather than happening asynchronously mid-execution; a thread that never
// makes such a call is never preempted, same as the tick-driven model this
// stands in for was always limited to cooperative rescheduling points.
// Callers must hold mu on entry and on return.
func (rt *Runtime) checkpoint() {
	for rt.preempt {
		rt.preempt = false
		next := rt.popRunnable()
		if next == nil {
			break
		}
		prev := rt.active
		prev.st = stateRunnable
		prev.treeHandle = rt.tree.Insert(rbtree.Key{Vruntime: prev.vruntime, Seq: prev.seq}, prev)
		rt.dispatch(next)
		rt.mu.Lock()
	}
}

// Create allocates a new thread running fn(arg), clamps priority to
// [1,10], and inserts it into the runnable set without yielding. Its
// vruntime starts at the runnable set's current minimum (or 0 if empty),
// so new arrivals compete on equal footing rather than being retroactively
// privileged over threads that have already accrued runtime.
func (rt *Runtime) Create(fn func(arg any) any, arg any, priority int) *Thread {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if priority < 1 || priority > 10 {
		clamped := priority
		if clamped < 1 {
			clamped = 1
		} else {
			clamped = 10
		}
		rt.diag("create.priority", "priority out of range [1,10], clamped")
		priority = clamped
	}

	id := rt.nextID
	rt.nextID++
	seq := rt.nextSeq
	rt.nextSeq++

	var vr int64
	if _, v, ok := rt.tree.Min(); ok {
		vr = v.(*Thread).vruntime
	}

	th := &Thread{
		id:       id,
		seq:      seq,
		priority: priority,
		nice:     0,
		vruntime: vr,
	}
	th.ctx = corectx.New(func() {
		ret := fn(arg)
		rt.Exit(ret)
	})
	rt.insertRunnable(th)
	rt.trace("create", th)
	return th
}

// Yield reschedules cooperatively: if the runnable set is empty this is a
// no-op preserving the caller as active; otherwise the runnable minimum
// becomes active and the caller is reinserted at its current vruntime.
func (rt *Runtime) Yield() {
	rt.mu.Lock()
	rt.checkpoint()

	next := rt.popRunnable()
	if next == nil {
		rt.mu.Unlock()
		return
	}
	prev := rt.active
	prev.st = stateRunnable
	prev.treeHandle = rt.tree.Insert(rbtree.Key{Vruntime: prev.vruntime, Seq: prev.seq}, prev)
	rt.dispatch(next)
}

// Exit terminates the calling thread with return value ret. Any thread
// already waiting to join this one is moved back into the runnable set
// with its join result set, and the exit does not produce a zombie; the
// returning thread itself never passes through the zombie set in that
// case, since its value was already delivered to its specific joiner.
// Otherwise the exiting thread becomes a zombie, its return value
// reachable until a future Join collects it. If no other thread is
// runnable, the runtime is marked terminated and Exit simply returns.
func (rt *Runtime) Exit(ret any) {
	rt.mu.Lock()

	exiting := rt.active
	exiting.retVal = ret
	rt.trace("exit", exiting)

	if joiner, ok := rt.joinQ.RemoveMatch(func(th *Thread) bool {
		return th.joinTarget && th.joinTid == exiting.id
	}); ok {
		joiner.joinRet = ret
		joiner.joinTarget = false
		rt.insertRunnable(joiner)
	} else {
		exiting.st = stateZombie
		rt.zombies.PushBack(exiting)
	}

	next := rt.popRunnable()
	if next == nil {
		rt.terminated = true
		rt.mu.Unlock()
		return
	}
	rt.active = next
	next.st = stateRunning
	rt.mu.Unlock()
	corectx.Switch(exiting.ctx, next.ctx)
}

// Sleep converts d to whole ticks and, if at least one tick, parks the
// caller in the sleep set until that many ticks have elapsed, switching
// to the runnable minimum. If d is less than one tick, Sleep returns
// immediately. If the runnable set is empty at the moment of sleeping,
// there would be nothing left to make progress and wake this thread back
// up, so Sleep refuses with ErrDeadlock instead of parking the caller.
func (rt *Runtime) Sleep(d time.Duration) error {
	rt.mu.Lock()
	rt.checkpoint()

	ticks := int64(d / rt.cfg.tickPeriod)
	if ticks <= 0 {
		rt.mu.Unlock()
		return nil
	}
	if rt.tree.Empty() {
		rt.mu.Unlock()
		return ErrDeadlock
	}

	th := rt.active
	th.wakeTime = rt.clock + ticks
	th.st = stateSleeping
	rt.sleepQ.PushBack(th)
	rt.trace("sleep", th)

	next := rt.popRunnable()
	rt.dispatch(next)
	return nil
}

// Join blocks the caller until the thread identified by target has
// exited, returning the value it passed to Exit. Already-exited threads
// are found in the zombie set and collected immediately. A thread cannot
// join itself. If target is not in the zombie set, the runnable set, the
// sleep queue, or the join queue, Join fails with ErrNotFound without
// blocking; threads waiting on a mutex or monitor are not searched.
func (rt *Runtime) Join(target uint64) (any, error) {
	rt.mu.Lock()
	rt.checkpoint()

	if z, ok := rt.zombies.RemoveMatch(func(th *Thread) bool { return th.id == target }); ok {
		z.st = stateDead
		rt.dead.PushBack(z)
		ret := z.retVal
		rt.mu.Unlock()
		return ret, nil
	}

	active := rt.active
	if active.id == target {
		rt.mu.Unlock()
		rt.diag("join.self", "thread attempted to join itself")
		return nil, ErrNotFound
	}

	matchID := func(th *Thread) bool { return th.id == target }
	if !rt.treeContainsID(target) && !rt.sleepQ.Contains(matchID) && !rt.joinQ.Contains(matchID) {
		rt.mu.Unlock()
		rt.diag("join.notfound", "join target not found in any container")
		return nil, ErrNotFound
	}

	active.joinTid = target
	active.joinTarget = true
	active.st = stateJoining
	rt.joinQ.PushBack(active)
	rt.trace("join", active)

	next := rt.popRunnable()
	if next == nil {
		rt.joinQ.RemoveMatch(func(th *Thread) bool { return th == active })
		active.joinTarget = false
		active.st = stateRunning
		rt.mu.Unlock()
		return nil, ErrDeadlock
	}
	rt.dispatch(next)

	rt.mu.Lock()
	ret := active.joinRet
	rt.mu.Unlock()
	return ret, nil
}

// Nice sets the calling thread's nice value, clamped to [0,10], and
// returns its new effective priority (priority + nice).
func (rt *Runtime) Nice(n int) int {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if n < 0 || n > 10 {
		clamped := n
		if clamped < 0 {
			clamped = 0
		} else {
			clamped = 10
		}
		rt.diag("nice.range", "nice out of range [0,10], clamped")
		n = clamped
	}
	rt.active.nice = n
	return rt.active.priority + rt.active.nice
}

// Tick advances the clock by one and runs the scheduling algorithm: wake
// due sleepers, guard against vruntime overflow, account runtime/waittime/
// sleeptime, and decide whether the active thread should be preempted at
// the next cooperative checkpoint. Tick never itself switches contexts —
// see checkpoint for why — so it is safe to call from a dedicated ticker
// goroutine running concurrently with whichever thread is active.
func (rt *Runtime) Tick() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.clock++

	rt.sleepQ.RemoveAllMatch(
		func(th *Thread) bool { return th.wakeTime == rt.clock },
		func(th *Thread) {
			th.wakeTime = 0
			th.sleeptime++
			rt.insertRunnable(th)
			rt.trace("wake", th)
		},
	)

	active := rt.active
	if active.vruntime >= rt.cfg.vruntimeMax-rt.cfg.maxInc {
		delta := active.vruntime
		rt.tree.DecAll(delta)
		rt.tree.VisitInOrder(func(_ rbtree.Key, v any) { v.(*Thread).vruntime -= delta })
		dec := func(th *Thread) { th.vruntime -= delta }
		rt.sleepQ.Each(dec)
		rt.joinQ.Each(dec)
		rt.blocked.Each(dec)
		active.vruntime = 0
		rt.trace("renormalize", active)
	}

	active.vruntime += int64(active.priority + active.nice)
	active.runtime++

	inc := func(th *Thread) { th.sleeptime++ }
	rt.sleepQ.Each(inc)
	rt.joinQ.Each(inc)
	rt.blocked.Each(inc)
	rt.tree.VisitInOrder(func(_ rbtree.Key, v any) { v.(*Thread).waittime++ })

	if rt.delay < rt.cfg.minDelay {
		rt.delay++
		return
	}
	_, v, ok := rt.tree.Min()
	if !ok {
		return
	}
	if v.(*Thread).vruntime > active.vruntime {
		rt.delay++
		return
	}
	rt.delay = 0
	rt.preempt = true
}

// StartTicking launches a background goroutine that calls Tick every
// configured tick period, using real wall-clock time rather than a mocked
// clock so preemption decisions interleave with whichever thread happens
// to be active, the same way an independent hardware timer would. The
// returned stop function halts the ticker; it is safe to call more than
// once.
func (rt *Runtime) StartTicking() (stop func()) {
	done := make(chan struct{})
	ticker := time.NewTicker(rt.cfg.tickPeriod)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rt.Tick()
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Dump logs the state of every thread across every container at Info
// level: active, runnable, sleeping, joining, zombie, dead, and every
// mutex's and monitor's waiters, each grouped under its own "mutex N" /
// "monitor N" label rather than one flat "blocked" bucket. A no-op if no
// logger was configured.
func (rt *Runtime) Dump() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.log == nil {
		return
	}

	emit := func(label string, th *Thread) {
		rt.log.Info().
			Str("container", label).
			Field("tid", th.id).
			Field("priority", th.priority).
			Field("vruntime", th.vruntime).
			Field("runtime", th.runtime).
			Field("sleeptime", th.sleeptime).
			Field("waittime", th.waittime).
			Log("thread")
	}

	emit("active", rt.active)
	rt.tree.VisitInOrder(func(_ rbtree.Key, v any) { emit("runnable", v.(*Thread)) })
	rt.sleepQ.Each(func(th *Thread) { emit("sleeping", th) })
	rt.joinQ.Each(func(th *Thread) { emit("joining", th) })
	rt.zombies.Each(func(th *Thread) { emit("zombie", th) })
	rt.dead.Each(func(th *Thread) { emit("dead", th) })
	rt.blocked.EachLabeled(func(label string, th *Thread) { emit(label, th) })
}
