package cache

import "errors"

// ErrCacheMiss is wrapped into the panic raised when a block just written
// into a cache slot by fetch cannot be found by the immediate retry that
// follows it. That can only happen if victim selection or the fetch
// prologue itself is broken, so it is treated as fatal rather than
// reported as an ordinary error.
var ErrCacheMiss = errors.New("cache: block missing immediately after fetch")

// ErrInvalidBlockNumber is returned when a negative block number is
// passed to Read, Write, or Invalidate.
var ErrInvalidBlockNumber = errors.New("cache: invalid block number")
