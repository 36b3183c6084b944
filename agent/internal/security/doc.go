// Package security inspects the TLS certificate served by each monitored page.
//
// Check dials the page and reports days until expiry and the issuer; Checker
// caches the result per target so pages are dialled once per
// cert_check_interval rather than on every collection.
package security
