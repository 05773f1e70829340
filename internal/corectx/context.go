// Package corectx provides the narrow context-switch primitive the
// scheduler dispatches threads through.
//
// The platform this package stands in for switches raw stacks with a
// setjmp/longjmp-style primitive; Go exposes no such operation, and a
// goroutine cannot be paused from outside itself. Each Context is instead
// backed by its own goroutine parked on an unbuffered channel, and control
// is handed from one to the next like a baton: Switch wakes the target and
// then blocks until some later Switch call hands control back to the
// caller. Exactly one context holds the baton at any instant, which is all
// the dispatcher above this package ever relies on.
//
// Unlike a stack-switch primitive, a Context's entry function must itself
// call Switch (with itself as from) whenever it wants to relinquish
// control, the same way the original sthread_switch(old, new) pair is
// called from inside the running thread rather than from some external
// supervisor.
package corectx

// Context is one schedulable flow of control. The zero value is not
// usable; construct with New or NewBlank.
type Context struct {
	resume  chan struct{}
	exited  chan struct{}
	resumer *Context
}

// NewBlank returns a Context representing the goroutine that calls
// NewBlank itself, typically the bootstrap "thread" the scheduler starts
// on. It has no entry function: its code is whatever runs after the first
// Switch call hands it the baton, and whatever runs after every
// subsequent Switch call hands it back.
func NewBlank() *Context {
	return &Context{
		resume: make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// New creates a Context whose body is entry, run on its own goroutine.
// entry does not start executing until some Switch call hands it the
// baton. entry must call Switch itself (passing its own Context as from)
// whenever it wants to give up the baton and later be resumed; entry
// simply returning marks the Context as exited and hands the baton back
// to whichever Context most recently switched into it, so a caller of
// Switch is never left blocked forever by a context that finishes without
// switching anywhere itself.
func New(entry func()) *Context {
	ctx := &Context{
		resume: make(chan struct{}),
		exited: make(chan struct{}),
	}
	go func() {
		<-ctx.resume
		entry()
		close(ctx.exited)
		if ctx.resumer != nil {
			ctx.resumer.resume <- struct{}{}
		}
	}()
	return ctx
}

// Exited reports whether ctx's entry function has returned.
func (ctx *Context) Exited() bool {
	select {
	case <-ctx.exited:
		return true
	default:
		return false
	}
}

// Switch hands the baton from the calling context to to, then blocks the
// caller until some later Switch call hands it back to from. from must be
// the Context the caller is itself running as; to must not have exited.
func Switch(from, to *Context) {
	to.resumer = from
	to.resume <- struct{}{}
	<-from.resume
}

// Free is a no-op, kept for parity with the primitive's create/switch/free
// shape: the backing goroutine frees itself when its entry function
// returns. Safe to call on any Context.
func Free(ctx *Context) {
	_ = ctx
}
