// Package cache implements the write-back block cache: a fixed-size set
// of entries carrying valid/referenced/modified bits, clock-variant
// (NRU) victim selection, and an optional background sweeper thread that
// ages reference bits and bounds write-back traffic via its own
// internal/obslog Throttle, the same rate-limiter type used for
// diagnostics.
//
// # Victim selection
//
// fetch always evicts through the same ordered cascade: an invalid
// slot first, then unreferenced-and-clean, then merely unreferenced,
// then merely clean, and only as a last resort slot 0 regardless of its
// state — which may itself be dirty, in which case it is written back
// before being reused, the same as any other dirty victim.
//
// # Sweeper
//
// The sweeper is an ordinary sched.Thread: it sleeps, ages every
// resident entry's counter, clears reference bits every four cycles,
// attempts a bounded write-back every ten cycles, and rolls the counter
// over at twenty. A write-back the rate limiter defers is retried at the
// entry's next ten-cycle point, not on the following sweep; the entry is
// left modified in the meantime.
package cache
