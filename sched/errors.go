package sched

import "errors"

// Sentinel errors returned by Runtime operations. None of these abort the
// runtime; each documents a specific, expected failure mode a caller must
// handle explicitly.
var (
	// ErrNotFound is returned by Join when the target is the calling thread
	// itself, or when no thread with the given id is in the zombie set,
	// runnable set, sleep queue, or join queue. Threads waiting on a mutex
	// or monitor are not searched.
	ErrNotFound = errors.New("sched: thread not found")

	// ErrDeadlock is returned by Sleep, Join, Mutex.Lock, and Monitor.Wait
	// when blocking the calling thread would leave the runnable set empty,
	// with nothing to switch to. The caller is not parked and keeps
	// running.
	ErrDeadlock = errors.New("sched: no runnable thread after transition")

	// ErrUnlockNotOwner is returned by Mutex.Unlock when the calling
	// thread does not hold the lock.
	ErrUnlockNotOwner = errors.New("sched: unlock by non-owner")

	// ErrMonitorNotOwner is returned by Monitor.Wait/Signal/SignalAll when
	// the calling thread does not hold the monitor's mutex.
	ErrMonitorNotOwner = errors.New("sched: monitor operation outside monitor")
)
