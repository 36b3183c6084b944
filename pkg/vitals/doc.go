// Package vitals holds the Core Web Vitals domain shared by the agent and the
// server: the three metrics (LCP, FID, CLS), their good/poor thresholds, the
// threshold classifier, the 0–100 aggregate score, the bounded sample history
// and the static optimization suggestion catalog.
//
// Everything here is pure and synchronous. Types that hold state (sessions,
// schedulers) live in the server and agent packages and call into this one.
//
// Score bands: good 33/33/34, needs-improvement 20, poor 10 per metric, so a
// perfect sample scores 100 and the worst possible sample scores 30.
package vitals
