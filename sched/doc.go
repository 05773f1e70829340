// Package sched provides a cooperative, CFS-style user-level thread
// runtime.
//
// # Architecture
//
// A Runtime owns a vruntime-ordered runnable set (internal/rbtree), a set
// of FIFO wait containers for sleeping/joining/zombie/dead threads
// (internal/queue), and exactly one active thread at a time. Threads are
// backed by internal/corectx contexts: goroutines parked on unbuffered
// channels, handed control one at a time like a baton, since Go exposes
// no raw stack-switch primitive to pause and resume arbitrary code.
//
// # Scheduling model
//
// The active thread changes only at well-defined cooperative points:
// Yield, Sleep, Join, Mutex.Lock when contended, and Monitor.Wait. A
// background ticker (Runtime.StartTicking) advances the clock, wakes due
// sleepers, guards against vruntime overflow, and decides whether the
// active thread should be preempted — but it never switches contexts
// itself; the actual handoff happens at the next cooperative point,
// since nothing in Go can forcibly interrupt an arbitrary running
// goroutine.
//
// # Thread safety
//
// Every exported Runtime/Mutex/Monitor method is safe to call from
// whichever goroutine is currently the active thread, and Tick is safe to
// call concurrently from an independent ticker goroutine; both serialize
// through the Runtime's internal lock.
//
// # Error handling
//
// Argument clamps (priority, nice) never fail; they warn at a rate-limited
// diagnostic level and proceed with the clamped value. Not-found and
// synchronization-misuse conditions return a sentinel error without
// aborting. A thread that would otherwise have nothing left to switch to
// while blocking (Sleep, Lock, Wait with no other runnable thread) returns
// ErrDeadlock rather than parking into an unrecoverable state.
package sched
