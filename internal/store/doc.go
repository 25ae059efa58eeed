// Package store holds the canonical client-side state: the aggregate
// usage snapshot, per-day activity records, the latest notification,
// and connection metadata.
//
// REST pulls and push updates both land here through a narrow set of
// mutation methods; snapshots replace, daily records upsert by date.
// Consumers read copies via View and follow changes via Subscribe.
package store
