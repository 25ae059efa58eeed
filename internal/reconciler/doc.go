// Package reconciler merges pull-based bulk snapshots into the state
// store. The push channel delivers deltas in real time; the reconciler
// covers gaps with a blocking pull at startup, periodic pulls on an
// interval, and triggered pulls after every reconnect.
package reconciler
