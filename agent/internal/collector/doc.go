// Package collector produces Core Web Vitals readings for each configured
// target.
//
// Two collectors are implemented:
//
//   - mock: synthetic readings from vitals.Generator, the same ranges the
//     demo dashboard uses (LCP 1.2-4.0s, FID 50-250ms, CLS 0.05-0.35).
//   - prometheus: scrapes a RUM exporter's /metrics endpoint and reads
//     web_vitals_lcp_seconds, web_vitals_fid_milliseconds and web_vitals_cls.
//     Summaries contribute their 0.75 quantile (the p75 Core Web Vitals
//     assessment uses); gauges and untyped series contribute their value.
//     Series carrying a url label are filtered to the target's URL.
//
// Authentication to the exporter (mTLS, API key, bearer, basic) is handled
// by authRoundTripper in base.go. Fetches go through a per-target circuit
// breaker so a dead exporter is not hammered every tick; while the breaker
// is open, readings carry gobreaker.ErrOpenState.
//
// A failed collection is not a Go error: Collect returns a Reading with Err
// set and no Sample, which the compute engine counts against uptime.
package collector
