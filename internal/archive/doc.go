// Package archive persists applied usage statistics to a local SQLite
// file so history survives restarts and can be inspected offline.
//
// Tables:
//   - snapshots: append-only log of aggregate snapshots
//   - daily_activity: per-day usage, upserted by date
//
// The Feeder subscribes to store events and coalesces them into batched
// writes. The file uses WAL mode and is safe to open read-only with any
// sqlite client while the daemon runs.
package archive
