package cache_test

import (
	"testing"

	"github.com/gocfs/sthread/cache"
	"github.com/gocfs/sthread/cache/memdevice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, size int) (*cache.Cache, *memdevice.Device) {
	t.Helper()
	dev := memdevice.New(16)
	c := cache.New(cache.WithCacheSize(size), cache.WithBlockSize(16), cache.WithDevice(dev))
	return c, dev
}

func TestReadMissFetchesFromDevice(t *testing.T) {
	c, dev := newTestCache(t, 4)
	require.NoError(t, dev.WriteBlock(7, []byte("helloworld123456")[:16]))

	out := make([]byte, 16)
	require.NoError(t, c.Read(7, out))
	assert.Equal(t, "helloworld123456", string(out))
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	c, _ := newTestCache(t, 4)
	in := make([]byte, 16)
	copy(in, "abcdefghijklmnop")
	require.NoError(t, c.Write(3, in))

	out := make([]byte, 16)
	require.NoError(t, c.Read(3, out))
	assert.Equal(t, in, out)
}

func TestInvalidateDiscardsDirtyData(t *testing.T) {
	c, dev := newTestCache(t, 4)
	in := make([]byte, 16)
	copy(in, "dirtydirtydirty!")
	require.NoError(t, c.Write(5, in))
	require.NoError(t, c.Invalidate(5))

	out := make([]byte, 16)
	require.NoError(t, c.Read(5, out))
	// Block 5 was never written to the device, so the re-fetch after
	// invalidation reads back a zeroed block, not the discarded write.
	assert.Equal(t, make([]byte, 16), out)
	assert.Equal(t, 0, dev.WriteCount())
}

func TestFlushAllWritesDirtyEntriesAndInvalidatesEverything(t *testing.T) {
	c, dev := newTestCache(t, 4)
	in := make([]byte, 16)
	copy(in, "flushmeflushme!!")
	require.NoError(t, c.Write(1, in))

	require.NoError(t, c.FlushAll())
	assert.Equal(t, 1, dev.WriteCount())

	out := make([]byte, 16)
	require.NoError(t, c.Read(1, out))
	assert.Equal(t, in, out)
}

func TestNegativeBlockNumberIsRejected(t *testing.T) {
	c, _ := newTestCache(t, 4)
	out := make([]byte, 16)
	assert.ErrorIs(t, c.Read(-1, out), cache.ErrInvalidBlockNumber)
	assert.ErrorIs(t, c.Write(-1, out), cache.ErrInvalidBlockNumber)
	assert.ErrorIs(t, c.Invalidate(-1), cache.ErrInvalidBlockNumber)
}

func TestReadsBeyondCapacityEvictAndStillSucceed(t *testing.T) {
	c, _ := newTestCache(t, 2)
	buf := make([]byte, 16)

	// Fill both slots.
	require.NoError(t, c.Read(0, buf))
	require.NoError(t, c.Read(1, buf))

	// Both slots are now valid and referenced (Read sets R). A third
	// distinct block must evict one of them rather than growing beyond
	// the configured size.
	require.NoError(t, c.Read(2, buf))

	// Reading block 0 or 1 again should still be resolvable (one may
	// have been evicted, one may remain); both reads must succeed
	// without error regardless of which slot they land in.
	assert.NoError(t, c.Read(0, buf))
	assert.NoError(t, c.Read(1, buf))
	assert.NoError(t, c.Read(2, buf))
}
