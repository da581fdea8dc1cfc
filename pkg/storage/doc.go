// Package storage provides persistence backends for tasks and limit
// configuration.
//
// # Overview
//
// The scheduler and rate limiter treat storage as a best-effort durability
// layer: a failed write is logged by the caller and never rolls back the
// in-memory state change it accompanies.
//
// Two backends are provided:
//
//   - MemoryBackend: in-process maps, used in tests and as the default
//   - SQLiteBackend: durable single-file storage with WAL journaling
//
// # Thread Safety
//
// All backends are safe for concurrent use.
package storage
