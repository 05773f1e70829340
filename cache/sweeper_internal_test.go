package cache

import (
	"testing"
	"time"

	"github.com/gocfs/sthread/cache/memdevice"
	"github.com/gocfs/sthread/internal/obslog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noAllowThrottle returns a Throttle whose single allowed event for
// "sweeper.flush" has already been consumed, so every subsequent Allow
// call for that category returns false within the window.
func noAllowThrottle(t *testing.T) *obslog.Throttle {
	t.Helper()
	th := obslog.NewThrottle(nil, map[time.Duration]int{time.Hour: 1})
	require.True(t, th.Allow("sweeper.flush"))
	return th
}

func TestAgeLockedClearsReferenceBitEveryFourCycles(t *testing.T) {
	dev := memdevice.New(16)
	c := New(WithCacheSize(1), WithBlockSize(16), WithDevice(dev))

	buf := make([]byte, 16)
	require.NoError(t, c.Read(0, buf))
	require.True(t, c.entries[0].ref)

	for i := 0; i < 3; i++ {
		c.ageLocked(nil)
		assert.True(t, c.entries[0].ref, "ref should survive cycles 1-3")
	}
	c.ageLocked(nil)
	assert.False(t, c.entries[0].ref, "ref should clear on the 4th cycle")
}

func TestAgeLockedFlushesDirtyEntryEveryTenCyclesAndResetsAtTwenty(t *testing.T) {
	dev := memdevice.New(16)
	c := New(WithCacheSize(1), WithBlockSize(16), WithDevice(dev))

	in := make([]byte, 16)
	copy(in, "sweepmesweepme!!")
	require.NoError(t, c.Write(9, in))
	require.True(t, c.entries[0].modified)

	for i := 0; i < 9; i++ {
		c.ageLocked(nil)
	}
	assert.True(t, c.entries[0].modified, "not yet flushed before the 10th cycle")
	assert.Equal(t, 0, dev.WriteCount())

	c.ageLocked(nil)
	assert.False(t, c.entries[0].modified, "flushed on the 10th cycle")
	assert.Equal(t, 1, dev.WriteCount())

	for i := 0; i < 10; i++ {
		c.ageLocked(nil)
	}
	assert.Equal(t, 0, c.entries[0].counter, "counter rolls over at 20")
}

func TestAgeLockedDefersFlushWhenLimiterExhausted(t *testing.T) {
	dev := memdevice.New(16)
	c := New(WithCacheSize(1), WithBlockSize(16), WithDevice(dev))

	in := make([]byte, 16)
	copy(in, "deferdeferdefer!")
	require.NoError(t, c.Write(4, in))

	limiter := noAllowThrottle(t)
	var deferred []int64
	for i := 0; i < 10; i++ {
		deferred = c.ageLocked(limiter)
	}
	assert.Equal(t, []int64{4}, deferred)
	assert.True(t, c.entries[0].modified, "deferred write-back leaves the entry dirty")
	assert.Equal(t, 0, dev.WriteCount())
}
