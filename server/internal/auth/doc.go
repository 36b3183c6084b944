// Package auth provides API key authentication for vitals-server.
//
// A Guard carries the key rule. APIKeyInterceptor applies it to the gRPC
// sample receiver and HTTPMiddleware to the REST API and WebSocket hub.
// When mode != "apikey" or key == "" every call passes.
package auth
