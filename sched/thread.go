package sched

import (
	"github.com/gocfs/sthread/internal/corectx"
	"github.com/gocfs/sthread/internal/rbtree"
)

// state names which of the mutually-exclusive containers a Thread
// currently occupies. Exactly one of these is true of any live thread at
// any instant.
type state uint8

const (
	stateRunning state = iota
	stateRunnable
	stateSleeping
	stateJoining
	stateLockWait
	stateZombie
	stateDead
)

func (s state) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateRunnable:
		return "runnable"
	case stateSleeping:
		return "sleeping"
	case stateJoining:
		return "joining"
	case stateLockWait:
		return "lockwait"
	case stateZombie:
		return "zombie"
	case stateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Thread is a thread control block. Every field here has a direct
// counterpart in the wait-container and runnable-set bookkeeping that
// moves a Thread between states; callers outside this package observe a
// Thread only through the accessor methods below, never by reaching into
// fields directly.
type Thread struct {
	id       uint64
	seq      uint64 // insertion sequence, used as the rbtree tie-breaker
	priority int    // 1..10
	nice     int    // 0..10

	vruntime  int64
	runtime   int64
	waittime  int64
	sleeptime int64

	wakeTime   int64 // tick at which a sleeping thread becomes runnable; 0 if not sleeping
	joinTid    uint64
	joinTarget bool // true while this thread is parked in the join queue awaiting joinTid
	joinRet    any  // deposited by the target thread this one joined, once it exits
	retVal     any  // this thread's own exit value, valid once stateZombie
	blockStart int64

	ctx *corectx.Context
	st  state

	treeHandle rbtree.Handle // valid only while st == stateRunnable
}

// ID returns the thread's unique identifier, assigned at creation.
func (t *Thread) ID() uint64 { return t.id }

// Priority returns the thread's priority (1..10).
func (t *Thread) Priority() int { return t.priority }

// Nice returns the thread's nice value (0..10).
func (t *Thread) Nice() int { return t.nice }

// Vruntime returns the thread's accumulated virtual runtime.
func (t *Thread) Vruntime() int64 { return t.vruntime }

// Runtime returns the number of ticks this thread has spent active.
func (t *Thread) Runtime() int64 { return t.runtime }

// Waittime returns the number of ticks this thread has spent runnable but
// not active.
func (t *Thread) Waittime() int64 { return t.waittime }

// Sleeptime returns the number of ticks this thread has spent sleeping,
// joining, or otherwise blocked.
func (t *Thread) Sleeptime() int64 { return t.sleeptime }
