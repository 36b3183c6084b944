// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort:              port for the gRPC sample receiver (default 50051)
//   - HTTPPort:              port for the REST API, WebSocket hub and UI (default 8080)
//   - LogLevel:              debug | info | warn | error (default info)
//   - Auth.Mode:             "apikey" or "none"
//   - Auth.KeyEnv:           environment variable holding the expected API key
//   - Auth.Header:           gRPC metadata/HTTP header name (default "x-api-key")
//   - Monitor.TickInterval:  sample cadence of monitoring sessions (default 2s)
//   - Monitor.SessionTTL:    idle session lifetime (default 30m)
//   - Monitor.MaxSessions:   concurrent session cap (default 100)
//   - Thresholds:            per-metric good/poor overrides, validated good < poor
//   - Alerts:                rules and webhooks
//   - UI:                    Vite dashboard serving (dir, dev, vite_url)
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, onChange) reloads the file on change; the server uses it to
// swap alert rules without a restart.
package config
