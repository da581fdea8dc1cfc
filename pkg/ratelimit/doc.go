// Package ratelimit enforces per-category token and request budgets over
// fixed wall-clock windows.
//
// # Overview
//
// Each task category carries five ceilings enforced together:
//
//   - tokens per minute
//   - tokens per hour
//   - tokens per day
//   - requests per minute
//   - requests per hour
//
// Admit is a pure predicate over the live counters; RecordUsage increments
// them. The caller owns the check-then-act sequence: Admit does not reserve
// budget, and RecordUsage does not re-validate.
//
// # Fixed windows
//
// Counters reset lazily when a public call observes that a wall-clock
// minute, hour, or calendar-day boundary has been crossed since the last
// reset. This is a fixed-window scheme: a caller can consume a full
// per-minute ceiling in the last second of one minute and again in the
// first second of the next. The boundary burst is a known, accepted
// property of the scheme and is relied on by compatibility tests.
//
// # Thread Safety
//
// All operations are safe for concurrent use.
package ratelimit
