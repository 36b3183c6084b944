// Package session holds the per-URL monitoring session: a bounded history of
// vitals samples, a monitoring flag, and an optional sample source.
//
// All mutation goes through Tick (scheduler-driven pull from the source) or
// Observe (externally collected sample). Both are no-ops while monitoring is
// paused. Readers take a consistent copy with Snapshot.
package session
