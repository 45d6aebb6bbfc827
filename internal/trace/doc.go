// Package trace provides SQLite-backed durable storage for chain runs.
//
// The chain itself defines no file format; persistence is a listener
// responsibility. Logger is a chain listener that writes:
//   - Runs: one row per chain run, keyed by a UUIDv7 run ID
//   - Samples: the parameter values and score every N states
//   - Best States: every new best state the chain reports
//   - Operator Stats: each operator's tally when the chain finishes
//   - Run Summaries: final length and scores when the chain finishes
//
// # Ordering
//
// Samples and best states are ordered by state number, never by wall time.
// Runs are ordered by ID; UUIDv7 IDs sort in creation order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package trace
