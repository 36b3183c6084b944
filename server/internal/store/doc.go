// Package store keeps the live monitoring sessions in memory. It indexes
// sessions by ID and by (URL, view mode), caps their number, drives the
// periodic tick of every session (Schedule) and evicts idle ones (Run).
package store
