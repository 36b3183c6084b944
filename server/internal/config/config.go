package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "score < 50", "lcp > 4",
	// "cls_status == poor", "grade == needs-improvement".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultGRPCPort     = 50051
	DefaultHTTPPort     = 8080
	DefaultTickInterval = 2 * time.Second
	DefaultSessionTTL   = 30 * time.Minute
	DefaultMaxSessions  = 100
	DefaultViteURL      = "http://localhost:5173"
	DefaultLogLevel     = "info"
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the gRPC sample receiver listens on (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the REST API, WebSocket hub and UI listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Auth configures how the server authenticates incoming gRPC and REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Monitor controls session scheduling and retention.
	Monitor MonitorConfig `yaml:"monitor"`

	// Thresholds overrides the default good/poor cutoffs per metric (lcp, fid, cls).
	// Per-metric statuses in the API, alerts and exporter use them; the
	// aggregate score always uses the published defaults.
	Thresholds map[string]vitals.Threshold `yaml:"thresholds"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`

	// UI configures serving of the dashboard front-end.
	UI UIConfig `yaml:"ui"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// MonitorConfig controls session scheduling and retention.
type MonitorConfig struct {
	// TickInterval is the period at which every monitoring session produces a
	// sample. Default: 2s.
	TickInterval time.Duration `yaml:"tick_interval"`

	// SessionTTL is how long a session survives without any activity (new
	// sample or API access). Default: 30m.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// MaxSessions caps the number of concurrent sessions. Default: 100.
	MaxSessions int `yaml:"max_sessions"`
}

// UIConfig controls the dashboard front-end.
type UIConfig struct {
	// Dir is the Vite build output directory (contains index.html and
	// .vite/manifest.json). Empty disables the UI unless Dev is set.
	Dir string `yaml:"dir"`

	// Dev proxies assets to a running Vite dev server at ViteURL.
	Dev bool `yaml:"dev"`

	// ViteURL is the Vite dev server address (default http://localhost:5173).
	ViteURL string `yaml:"vite_url"`
}

// Enabled reports whether the UI should be mounted.
func (u UIConfig) Enabled() bool {
	return u.Dir != "" || u.Dev
}

// ThresholdTable returns the configured thresholds merged over the defaults.
// Load has already validated every entry.
func (s ServerConfig) ThresholdTable() vitals.Thresholds {
	out := make(vitals.Thresholds, len(vitals.Metrics))
	for m, t := range vitals.DefaultThresholds {
		out[m] = t
	}
	for name, t := range s.Thresholds {
		if m, err := vitals.ParseMetric(name); err == nil {
			out[m] = t
		}
	}
	return out
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			LogLevel: DefaultLogLevel,
			Monitor: MonitorConfig{
				TickInterval: DefaultTickInterval,
				SessionTTL:   DefaultSessionTTL,
				MaxSessions:  DefaultMaxSessions,
			},
			UI: UIConfig{ViteURL: DefaultViteURL},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Monitor.TickInterval <= 0 {
		return fmt.Errorf("server.monitor.tick_interval must be positive")
	}
	if s.Monitor.SessionTTL <= 0 {
		return fmt.Errorf("server.monitor.session_ttl must be positive")
	}
	if s.Monitor.MaxSessions <= 0 {
		return fmt.Errorf("server.monitor.max_sessions must be positive")
	}
	for name, t := range s.Thresholds {
		if _, err := vitals.ParseMetric(name); err != nil {
			return fmt.Errorf("server.thresholds: %w", err)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("server.thresholds.%s: %w", name, err)
		}
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d] %q: condition is required", i, r.Name)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}
