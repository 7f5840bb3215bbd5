package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tunnelfight/internal/database"
)

// EnvPrefix prefixes every server environment override.
const EnvPrefix = "TUNNELFIGHT_"

// ServerConfig holds server-wide configuration settings.
type ServerConfig struct {
	HTTP        HTTPConfig        `yaml:"http" envPrefix:"HTTP_"`
	WebSocket   WebSocketConfig   `yaml:"websocket" envPrefix:"WS_"`
	Connections ConnectionsConfig `yaml:"connections" envPrefix:"CONNECTIONS_"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Simulation  SimulationConfig  `yaml:"simulation" envPrefix:"SIM_"`

	// Database archives reports. An empty driver disables the archive.
	Database database.Config `yaml:"database" envPrefix:"DB_"`

	// OTelEndpoint enables trace export when set.
	OTelEndpoint string `yaml:"otel_endpoint" env:"OTEL_ENDPOINT"`
}

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`

	// MaxBodyBytes bounds POST /simulate bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Addr returns host:port for net.Listen.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig holds lockout settings for clients that keep sending
// requests the server rejects.
type RateLimitConfig struct {
	// MaxAttempts is the number of rejected requests before lockout.
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`

	// LockoutSeconds is the initial lockout duration in seconds.
	LockoutSeconds int `yaml:"lockout_seconds" env:"LOCKOUT_SECONDS"`

	// MaxLockoutSeconds caps the exponential backoff.
	MaxLockoutSeconds int `yaml:"max_lockout_seconds" env:"MAX_LOCKOUT_SECONDS"`
}

// ConnectionsConfig limits concurrent simulation streams.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent streams from a single IP address.
	// 0 means unlimited (not recommended).
	MaxPerIP int `yaml:"max_per_ip" env:"MAX_PER_IP"`

	// MaxTotal is the maximum total concurrent streams. 0 means unlimited.
	MaxTotal int `yaml:"max_total" env:"MAX_TOTAL"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	// MaxMessageSize is the maximum inbound WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size" env:"MAX_MESSAGE_SIZE"`
}

// SimulationConfig bounds what a single request may ask for.
type SimulationConfig struct {
	MaxRounds      int `yaml:"max_rounds" env:"MAX_ROUNDS"`
	MaxIterations  int `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	DefaultSamples int `yaml:"default_samples" env:"DEFAULT_SAMPLES"`
	MaxSamples     int `yaml:"max_samples" env:"MAX_SAMPLES"`

	// Workers is the default worker count; 1 keeps the single shared stream.
	Workers    int `yaml:"workers" env:"WORKERS"`
	MaxWorkers int `yaml:"max_workers" env:"MAX_WORKERS"`
}

// DefaultConfig returns a ServerConfig with secure defaults.
func DefaultConfig() *ServerConfig {
	db := database.DefaultConfig("data/tunnelfight.db")
	db.Driver = "" // archive off unless configured

	return &ServerConfig{
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 1 << 20,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 3,
			MaxTotal: 100,
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:       5,
			LockoutSeconds:    30,
			MaxLockoutSeconds: 300,
		},
		Simulation: SimulationConfig{
			MaxRounds:      100,
			MaxIterations:  200000,
			DefaultSamples: 5,
			MaxSamples:     50,
			Workers:        1,
			MaxWorkers:     16,
		},
		Database: db,
	}
}

// portOverride picks up the bare PORT variable many hosts set.
type portOverride struct {
	Port int `env:"PORT"`
}

// LoadConfig loads server configuration from a YAML file, then applies
// TUNNELFIGHT_* environment overrides. A missing file means defaults.
func LoadConfig(path string) (*ServerConfig, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Use defaults if file doesn't exist
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	var port portOverride
	if err := env.Parse(&port); err != nil {
		return nil, fmt.Errorf("failed to parse PORT: %w", err)
	}
	if port.Port != 0 {
		config.HTTP.Port = port.Port
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the server cannot run with.
func (c *ServerConfig) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("http.max_body_bytes must be positive"))
	}
	s := c.Simulation
	if s.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("simulation.max_iterations must be positive"))
	}
	if s.DefaultSamples < 0 || s.DefaultSamples > s.MaxSamples {
		errs = append(errs, fmt.Errorf("simulation.default_samples must be in 0..%d", s.MaxSamples))
	}
	if s.Workers < 1 || (s.MaxWorkers > 0 && s.Workers > s.MaxWorkers) {
		errs = append(errs, fmt.Errorf("simulation.workers must be in 1..max_workers"))
	}
	switch c.Database.Driver {
	case "", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not sqlite or postgres", c.Database.Driver))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ArchiveEnabled reports whether a report database is configured.
func (c *ServerConfig) ArchiveEnabled() bool {
	return c.Database.Driver != ""
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // non-browser client
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
