package corectx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitchRunsEntryAndReturnsOnExit(t *testing.T) {
	host := NewBlank()
	var ran bool
	worker := New(func() {
		ran = true
	})

	Switch(host, worker)
	assert.True(t, ran)
	assert.True(t, worker.Exited())
}

func TestExplicitYieldAndResume(t *testing.T) {
	host := NewBlank()
	var log []string
	worker := New(func() {
		log = append(log, "a")
		Switch(worker, host)
		log = append(log, "b")
		Switch(worker, host)
		log = append(log, "c")
	})

	Switch(host, worker)
	assert.Equal(t, []string{"a"}, log)
	require.False(t, worker.Exited())

	Switch(host, worker)
	assert.Equal(t, []string{"a", "b"}, log)
	require.False(t, worker.Exited())

	Switch(host, worker)
	assert.Equal(t, []string{"a", "b", "c"}, log)
	assert.True(t, worker.Exited())
}

func TestChainedSwitchBetweenThreeContexts(t *testing.T) {
	host := NewBlank()
	var log []string

	var ctxA, ctxB *Context
	ctxA = New(func() {
		log = append(log, "A1")
		Switch(ctxA, ctxB)
		log = append(log, "A2")
	})
	ctxB = New(func() {
		log = append(log, "B1")
	})

	// host -> A: A logs A1, switches directly to B (not back to host).
	// B logs B1 and returns, which hands the baton back to A (its
	// resumer), letting A log A2 and return, which in turn hands the
	// baton back to host (A's resumer).
	Switch(host, ctxA)
	assert.Equal(t, []string{"A1", "B1", "A2"}, log)
	assert.True(t, ctxA.Exited())
	assert.True(t, ctxB.Exited())
}
