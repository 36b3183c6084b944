// Package api implements the HTTP REST API for vitals-server.
//
// New(store, engine, opts) returns an http.Handler that serves:
//
//	GET    /api/v1/health                    overall score, grade counts
//	GET    /api/v1/sessions                  all sessions ([]SessionResponse)
//	POST   /api/v1/sessions                  {url, view_mode?}: 201 new, 200 existing
//	GET    /api/v1/sessions/{id}             single session; 404 if unknown
//	DELETE /api/v1/sessions/{id}             204
//	POST   /api/v1/sessions/{id}/start       resume monitoring
//	POST   /api/v1/sessions/{id}/stop        pause monitoring
//	POST   /api/v1/sessions/{id}/toggle      flip monitoring
//	GET    /api/v1/sessions/{id}/history     last 20 samples, oldest first
//	GET    /api/v1/thresholds                good/poor cutoffs per metric
//	GET    /api/v1/suggestions[?metric=]     optimisation catalog
//	GET    /api/v1/classify?metric=&value=   classify a single reading
//	GET    /api/v1/alerts                    firing + recently resolved alerts
//	GET    /api/v1/snapshot                  full dashboard payload
//
// Every response is JSON; errors are {"error": "..."} with 400, 404, 405 or
// 429. BuildSnapshot is shared with the WebSocket hub.
package api
