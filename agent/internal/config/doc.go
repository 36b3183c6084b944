// Package config loads and watches the agent configuration file.
//
// Top-level types:
//   - Config{Agent}: full config tree parsed from YAML
//   - AgentConfig: server_endpoint, tick_interval, ship_interval, buffer_size,
//     cert_check_interval, log_level, targets[], server_auth
//   - Target: id, url, view_mode (desktop|mobile), collector (mock|prometheus),
//     endpoint, auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env; secrets resolve
//     from environment variables
//
// Load(path) reads the YAML file, applies defaults (2s tick, 5s ship, 1000
// buffer, 1h cert checks, mock collector, desktop view), then validates
// required fields and enums.
//
// Watch(ctx, path, onChange) uses fsnotify on the parent directory so that
// atomic-save editors (write to temp, rename over) are still observed.
package config
