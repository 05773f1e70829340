package sched

import (
	"fmt"

	"github.com/gocfs/sthread/internal/queue"
)

// Mutex is a scheduler-level lock: acquiring a held Mutex parks the
// calling thread on its waiter queue and switches to the runnable
// minimum, rather than spinning or blocking the underlying goroutine.
// The waiter queue is registered with the owning Runtime's blocked set
// so renormalization and per-tick time-advance reach blocked threads too.
type Mutex struct {
	rt      *Runtime
	owner   *Thread
	waiters *queue.Queue[*Thread]
}

// NewMutex creates an unlocked Mutex owned by rt.
func (rt *Runtime) NewMutex() *Mutex {
	m := &Mutex{rt: rt, waiters: queue.New[*Thread]()}
	rt.mu.Lock()
	rt.mutexSeq++
	rt.blocked.Register(fmt.Sprintf("mutex %d", rt.mutexSeq), m.waiters)
	rt.mu.Unlock()
	return m
}

// Free deregisters m's waiter queue from its Runtime's blocked set. m
// must have no waiters.
func (m *Mutex) Free() {
	m.rt.mu.Lock()
	m.rt.blocked.Deregister(m.waiters)
	m.rt.mu.Unlock()
}

// Lock acquires m, blocking the caller if it is already held. Returns
// ErrDeadlock if no other thread is runnable to switch to while blocking
// (without that thread eventually releasing m, nothing could ever resume
// the caller).
func (m *Mutex) Lock() error {
	m.rt.mu.Lock()
	m.rt.checkpoint()

	if m.owner == nil {
		m.owner = m.rt.active
		m.rt.mu.Unlock()
		return nil
	}
	if m.rt.tree.Empty() {
		m.rt.mu.Unlock()
		return ErrDeadlock
	}

	active := m.rt.active
	active.blockStart = m.rt.clock
	active.st = stateLockWait
	m.waiters.PushBack(active)

	next := m.rt.popRunnable()
	m.rt.dispatch(next)
	return nil
}

// Unlock releases m. Returns ErrUnlockNotOwner without changing any state
// if the caller does not currently hold m. If a thread is waiting,
// ownership transfers directly to the head of the waiter queue, which is
// moved into the runnable set; otherwise m becomes unowned.
func (m *Mutex) Unlock() error {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()

	if m.owner != m.rt.active {
		m.rt.diag("mutex.unlock", "unlock by non-owner")
		return ErrUnlockNotOwner
	}

	if next, ok := m.waiters.PopFront(); ok {
		m.owner = next
		m.rt.insertRunnable(next)
	} else {
		m.owner = nil
	}
	return nil
}

// Monitor pairs a Mutex with a condition-variable waiter queue. Enter and
// Exit are the mutex's Lock and Unlock; Wait releases the mutex and
// blocks on the condition queue; Signal/SignalAll move waiters directly
// to the mutex's own waiter queue rather than the runnable set, so a
// signalled thread never races for the lock out of turn — it joins the
// tail and is granted ownership only when the mutex is actually released.
type Monitor struct {
	rt      *Runtime
	mutex   *Mutex
	waiters *queue.Queue[*Thread]
}

// NewMonitor creates a Monitor (and its backing Mutex) owned by rt.
func (rt *Runtime) NewMonitor() *Monitor {
	m := &Monitor{rt: rt, mutex: rt.NewMutex(), waiters: queue.New[*Thread]()}
	rt.mu.Lock()
	rt.monitorSeq++
	rt.blocked.Register(fmt.Sprintf("monitor %d", rt.monitorSeq), m.waiters)
	rt.mu.Unlock()
	return m
}

// Free deregisters m's condition queue and its backing mutex's queue.
func (m *Monitor) Free() {
	m.rt.mu.Lock()
	m.rt.blocked.Deregister(m.waiters)
	m.rt.mu.Unlock()
	m.mutex.Free()
}

// Enter acquires the monitor's mutex.
func (m *Monitor) Enter() error { return m.mutex.Lock() }

// Exit releases the monitor's mutex.
func (m *Monitor) Exit() error { return m.mutex.Unlock() }

// Wait requires the caller to hold the monitor (else ErrMonitorNotOwner),
// then releases the mutex (transferring it to the next waiter exactly as
// Unlock would) and blocks the caller on the condition queue until a
// future Signal/SignalAll moves it back onto the mutex's waiter queue.
func (m *Monitor) Wait() error {
	m.rt.mu.Lock()
	m.rt.checkpoint()

	if m.mutex.owner != m.rt.active {
		m.rt.mu.Unlock()
		m.rt.diag("monitor.wait", "monitor wait called outside monitor")
		return ErrMonitorNotOwner
	}
	if m.rt.tree.Empty() {
		m.rt.mu.Unlock()
		return ErrDeadlock
	}

	active := m.rt.active
	active.st = stateLockWait
	m.waiters.PushBack(active)

	if next, ok := m.mutex.waiters.PopFront(); ok {
		m.mutex.owner = next
		m.rt.insertRunnable(next)
	} else {
		m.mutex.owner = nil
	}

	next := m.rt.popRunnable()
	m.rt.dispatch(next)
	return nil
}

// Signal moves the head of the condition queue, if any, onto the mutex's
// waiter queue. The caller must hold the monitor.
func (m *Monitor) Signal() error {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()

	if m.mutex.owner != m.rt.active {
		m.rt.diag("monitor.signal", "monitor signal called outside monitor")
		return ErrMonitorNotOwner
	}
	if th, ok := m.waiters.PopFront(); ok {
		th.st = stateLockWait
		m.mutex.waiters.PushBack(th)
	}
	return nil
}

// SignalAll moves every waiter on the condition queue onto the mutex's
// waiter queue, in arrival order. The caller must hold the monitor.
func (m *Monitor) SignalAll() error {
	m.rt.mu.Lock()
	defer m.rt.mu.Unlock()

	if m.mutex.owner != m.rt.active {
		m.rt.diag("monitor.signalall", "monitor signalall called outside monitor")
		return ErrMonitorNotOwner
	}
	for {
		th, ok := m.waiters.PopFront()
		if !ok {
			break
		}
		th.st = stateLockWait
		m.mutex.waiters.PushBack(th)
	}
	return nil
}
