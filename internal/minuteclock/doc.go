// Package minuteclock runs registered callbacks once per wall-clock minute,
// aligned to the minute boundary (second 0, millisecond 0).
//
// # Alignment
//
// Start computes the delay to the next boundary with UntilNextMinute and arms a
// one-shot timer for it. The delay is never zero: on an exact boundary the
// next tick is a full minute away.
//
// # Drift policy
//
// After every tick the trigger is re-armed according to the DriftPolicy:
//
//   - PolicySelfCorrecting (default): the delay to the next boundary is
//     recomputed from the live wall clock. Ticks stay on boundaries across long
//     uptimes, suspend/resume and NTP slews. A clock step backwards delays the
//     following tick until the wall clock reaches the next boundary again.
//   - PolicyFixedPeriod: the first tick is aligned; later ticks are a constant
//     60s apart, anchored at the first tick and measured on the monotonic
//     clock. Cheaper to reason about, but it drifts relative to the wall clock
//     whenever the wall clock is adjusted.
//
// Re-arming happens after the tick's dispatch finishes, so ticks never
// overlap. A dispatch that outlasts a minute skips the boundaries it missed.
//
// # Dispatch
//
// Each tick snapshots the registry and runs the callbacks in registration
// order. Registering or unregistering from inside a callback takes effect from
// the next tick. A callback that returns an error or panics is reported to the
// Sink; the remaining callbacks still run and the scheduler keeps ticking.
package minuteclock
