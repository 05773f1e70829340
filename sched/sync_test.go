package sched_test

import (
	"testing"

	"github.com/gocfs/sthread/sched"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexContentionGrantsToWaiterInOrder(t *testing.T) {
	rt := sched.New()
	m := rt.NewMutex()
	require.NoError(t, m.Lock())

	var log []string
	rt.Create(func(arg any) any {
		log = append(log, "helper:before-lock")
		_ = m.Lock()
		log = append(log, "helper:locked")
		_ = m.Unlock()
		return nil
	}, nil, 1)

	rt.Yield()
	assert.Equal(t, []string{"helper:before-lock"}, log)

	require.NoError(t, m.Unlock())
	rt.Yield()
	assert.Equal(t, []string{"helper:before-lock", "helper:locked"}, log)
}

func TestMutexUnlockByNonOwnerFails(t *testing.T) {
	rt := sched.New()
	m := rt.NewMutex()
	require.NoError(t, m.Lock())
	require.NoError(t, m.Unlock())

	err := m.Unlock()
	assert.ErrorIs(t, err, sched.ErrUnlockNotOwner)
}

func TestMutexLockWithNoOtherRunnableIsDeadlock(t *testing.T) {
	rt := sched.New()
	m := rt.NewMutex()
	require.NoError(t, m.Lock())

	rt.Create(func(arg any) any {
		err := m.Lock()
		return err
	}, nil, 1)

	ret, err := rt.Join(2)
	// The helper first runs when thread1 parks in Join. Its m.Lock finds
	// m held and nothing else runnable to switch to, so it returns
	// ErrDeadlock instead of blocking, and the helper exits with that
	// error as its return value.
	require.NoError(t, err)
	assert.ErrorIs(t, ret.(error), sched.ErrDeadlock)
}

func TestMonitorWaitSignalTransfersOwnership(t *testing.T) {
	rt := sched.New()
	mon := rt.NewMonitor()
	require.NoError(t, mon.Enter())

	var log []string
	var enterErr, waitErr, exitErr error
	rt.Create(func(arg any) any {
		log = append(log, "consumer:enter-attempt")
		enterErr = mon.Enter()
		log = append(log, "consumer:entered")
		waitErr = mon.Wait()
		log = append(log, "consumer:woken")
		exitErr = mon.Exit()
		return nil
	}, nil, 1)

	rt.Yield()
	assert.Equal(t, []string{"consumer:enter-attempt"}, log)

	require.NoError(t, mon.Exit())
	rt.Yield()
	assert.Equal(t, []string{"consumer:enter-attempt", "consumer:entered"}, log)

	require.NoError(t, mon.Enter())
	require.NoError(t, mon.Signal())
	require.NoError(t, mon.Exit())
	rt.Yield()

	assert.Equal(t, []string{"consumer:enter-attempt", "consumer:entered", "consumer:woken"}, log)
	assert.NoError(t, enterErr)
	assert.NoError(t, waitErr)
	assert.NoError(t, exitErr)
}

func TestMonitorWaitOutsideMonitorFails(t *testing.T) {
	rt := sched.New()
	mon := rt.NewMonitor()
	err := mon.Wait()
	assert.ErrorIs(t, err, sched.ErrMonitorNotOwner)
}

func TestMonitorSignalWithNoWaitersIsNoop(t *testing.T) {
	rt := sched.New()
	mon := rt.NewMonitor()
	require.NoError(t, mon.Enter())
	assert.NoError(t, mon.Signal())
	assert.NoError(t, mon.Exit())
}
