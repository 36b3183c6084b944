// Package exporter serves session state in the Prometheus text exposition
// format at /metrics so an existing Prometheus can scrape vitals-server.
package exporter
