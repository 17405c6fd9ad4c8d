// Package store provides SQLite-backed history for scenario runs.
//
// A run row records the scenario name, faker seed, pass/fail outcome,
// failure messages and the trace digest. Each executed flow step is a
// row in steps, keyed by (run_id, step), with its arguments and result
// stored as RFC 8785 canonical JSON and its own domain-separated digest.
//
// # Ordering
//
// Run IDs are UUIDv7, so they sort by creation time. Listings order by
// started_at then id, newest first. Steps always come back in flow
// order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Deleting a run removes its steps
package store
