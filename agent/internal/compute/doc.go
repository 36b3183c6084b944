// Package compute turns collector readings into shippable results.
//
// Engine.Process scores the sample with vitals.Score, grades it, classifies
// each metric, and tracks per-target uptime over the last 20 collections.
// A failed collection yields a Result with no sample, state "unknown" and
// the failure in ErrorMessage. Process accepts an injectable time.Time so
// tests are deterministic.
package compute
