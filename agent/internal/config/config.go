package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultTickInterval      = 2 * time.Second
	DefaultShipInterval      = 5 * time.Second
	DefaultBufferSize        = 1000
	DefaultCertCheckInterval = time.Hour
	DefaultLogLevel          = "info"
	DefaultAuthHeader        = "x-api-key"
)

// Collector kinds accepted in targets[].collector.
const (
	CollectorMock       = "mock"
	CollectorPrometheus = "prometheus"
)

// Config is the top-level agent configuration file.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the gRPC address of vitals-server (host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// TickInterval controls how often each target is collected (default 2s).
	TickInterval time.Duration `yaml:"tick_interval"`

	// ShipInterval bounds how long a report may wait in the buffer before the
	// shipper retries a lost connection.
	ShipInterval time.Duration `yaml:"ship_interval"`

	// BufferSize is the maximum number of reports held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// CertCheckInterval is how often the TLS certificate of each https
	// target is inspected (default 1h).
	CertCheckInterval time.Duration `yaml:"cert_check_interval"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Targets is the list of monitored pages.
	Targets []Target `yaml:"targets"`

	// ServerAuth configures how the agent authenticates to vitals-server.
	// Supports: mtls | apikey | none.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// Target describes one monitored page and where its vitals come from.
type Target struct {
	// ID is a unique, human-readable identifier for this target.
	ID string `yaml:"id"`

	// URL is the page being measured. The server keys sessions on it.
	URL string `yaml:"url"`

	// ViewMode is desktop or mobile (default desktop).
	ViewMode string `yaml:"view_mode"`

	// Collector is mock (synthetic readings) or prometheus (scrape a RUM
	// exporter). Defaults to mock.
	Collector string `yaml:"collector"`

	// Endpoint is the metrics URL scraped by the prometheus collector.
	Endpoint string `yaml:"endpoint"`

	// Auth configures how the agent authenticates to Endpoint.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options for Endpoint and the cert check.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies an authentication mode.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header (or gRPC metadata key) that carries the API key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username.
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns Header, or x-api-key when it is empty.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return DefaultAuthHeader
	}
	return a.Header
}

// TLSConfig holds per-target TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	for i := range cfg.Agent.Targets {
		t := &cfg.Agent.Targets[i]
		if t.Collector == "" {
			t.Collector = CollectorMock
		}
		if t.ViewMode == "" {
			t.ViewMode = "desktop"
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			TickInterval:      DefaultTickInterval,
			ShipInterval:      DefaultShipInterval,
			BufferSize:        DefaultBufferSize,
			CertCheckInterval: DefaultCertCheckInterval,
			LogLevel:          DefaultLogLevel,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if a.TickInterval <= 0 {
		return fmt.Errorf("agent.tick_interval must be positive")
	}
	if a.ShipInterval <= 0 {
		return fmt.Errorf("agent.ship_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if a.CertCheckInterval <= 0 {
		return fmt.Errorf("agent.cert_check_interval must be positive")
	}
	switch a.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent.log_level: unknown level %q", a.LogLevel)
	}
	switch a.ServerAuth.Mode {
	case "mtls", "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth: unknown mode %q", a.ServerAuth.Mode)
	}

	seen := make(map[string]bool, len(a.Targets))
	for i, t := range a.Targets {
		if t.ID == "" {
			return fmt.Errorf("targets[%d]: id is required", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("targets[%d]: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
		if t.URL == "" {
			return fmt.Errorf("targets[%d] %q: url is required", i, t.ID)
		}
		switch t.ViewMode {
		case "desktop", "mobile":
		default:
			return fmt.Errorf("targets[%d] %q: unknown view_mode %q", i, t.ID, t.ViewMode)
		}
		switch t.Collector {
		case CollectorMock:
		case CollectorPrometheus:
			if t.Endpoint == "" {
				return fmt.Errorf("targets[%d] %q: endpoint is required for the prometheus collector", i, t.ID)
			}
		default:
			return fmt.Errorf("targets[%d] %q: unknown collector %q", i, t.ID, t.Collector)
		}
		switch t.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("targets[%d] %q: unknown auth mode %q", i, t.ID, t.Auth.Mode)
		}
	}
	return nil
}
