// Package store provides durable, range-queryable storage for usage
// events.
//
// The ledger's in-memory buffer only retains seven days of events; the
// analytics surface reads from this store instead, so reports can cover
// arbitrary windows. Events are immutable once appended. Retention is
// enforced by Prune, typically driven by the cron-based Retention runner.
package store
