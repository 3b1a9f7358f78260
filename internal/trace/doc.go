// Package trace provides SQLite-backed durable storage for dispatcher
// activity, plus the observers that feed it.
//
// The trace is an append-only log of the notifications a dispatcher emits:
// instance admitted, instance finished, handler skipped, handler fault.
// Consumers (the timeline renderer, the trace CLI command) read it back in
// logical seq order - ordering always uses the dispatcher's seq counter,
// never wall-clock timestamps.
//
// Two observers are provided:
//   - Recorder persists events to a Store (SQLite, WAL mode)
//   - Collector keeps events in memory for tests and one-shot runs
//
// Both are pure consumers: they implement dispatch.Notifier and cannot
// influence an admission decision.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Writes are idempotent via ON CONFLICT(token, kind) DO NOTHING: an
// instance admits once and finishes once, so (token, kind) identifies an
// event.
package trace
