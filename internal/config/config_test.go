package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.WebSocket.AllowedOrigins) != 0 {
		t.Errorf("expected empty allowed origins by default, got %v", cfg.WebSocket.AllowedOrigins)
	}
	if cfg.HTTP.Addr() != "0.0.0.0:3000" {
		t.Errorf("default address = %q, want 0.0.0.0:3000", cfg.HTTP.Addr())
	}
	if cfg.Simulation.MaxRounds != 100 || cfg.Simulation.MaxIterations != 200000 {
		t.Errorf("simulation defaults = %+v", cfg.Simulation)
	}
	if cfg.Simulation.DefaultSamples != 5 || cfg.Simulation.Workers != 1 {
		t.Errorf("simulation defaults = %+v", cfg.Simulation)
	}
	if cfg.ArchiveEnabled() {
		t.Error("report archive should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadConfig_FileNotExists(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.HTTP.Port != 3000 {
		t.Errorf("expected default port, got %d", cfg.HTTP.Port)
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
http:
  port: 8080
  shutdown_timeout: 3s
websocket:
  allowed_origins:
    - "https://example.com"
    - "http://localhost:3000"
  max_message_size: 8192
simulation:
  max_iterations: 50000
  workers: 4
database:
  driver: sqlite
  sqlite_path: /tmp/reports.db
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != 8080 || cfg.HTTP.ShutdownTimeout != 3*time.Second {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if len(cfg.WebSocket.AllowedOrigins) != 2 || cfg.WebSocket.AllowedOrigins[0] != "https://example.com" {
		t.Errorf("allowed origins = %v", cfg.WebSocket.AllowedOrigins)
	}
	if cfg.WebSocket.MaxMessageSize != 8192 {
		t.Errorf("expected max message size 8192, got %d", cfg.WebSocket.MaxMessageSize)
	}
	if cfg.Simulation.MaxIterations != 50000 || cfg.Simulation.Workers != 4 {
		t.Errorf("simulation = %+v", cfg.Simulation)
	}
	if cfg.Simulation.MaxRounds != 100 {
		t.Errorf("unset max_rounds lost its default: %d", cfg.Simulation.MaxRounds)
	}
	if !cfg.ArchiveEnabled() || cfg.Database.SQLitePath != "/tmp/reports.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "http: [nope")
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "http:\n  port: 8080\n")

	t.Setenv("TUNNELFIGHT_HTTP_PORT", "9090")
	t.Setenv("TUNNELFIGHT_WS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("TUNNELFIGHT_SIM_WORKERS", "8")
	t.Setenv("TUNNELFIGHT_DB_DRIVER", "postgres")
	t.Setenv("TUNNELFIGHT_DB_POSTGRES_HOST", "db.internal")
	t.Setenv("TUNNELFIGHT_DB_POSTGRES_CONN_MAX_LIFETIME", "90s")
	t.Setenv("TUNNELFIGHT_OTEL_ENDPOINT", "http://collector:4318")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want env override 9090", cfg.HTTP.Port)
	}
	if got := strings.Join(cfg.WebSocket.AllowedOrigins, " "); got != "https://a.example https://b.example" {
		t.Errorf("allowed origins = %q", got)
	}
	if cfg.Simulation.Workers != 8 {
		t.Errorf("workers = %d, want 8", cfg.Simulation.Workers)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Postgres.Host != "db.internal" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Database.Postgres.ConnMaxLifetime != 90*time.Second {
		t.Errorf("conn max lifetime = %v", cfg.Database.Postgres.ConnMaxLifetime)
	}
	if cfg.Database.Postgres.Port != 5432 {
		t.Errorf("postgres port lost its default: %d", cfg.Database.Postgres.Port)
	}
	if cfg.OTelEndpoint != "http://collector:4318" {
		t.Errorf("otel endpoint = %q", cfg.OTelEndpoint)
	}
}

func TestLoadConfig_PortVariable(t *testing.T) {
	t.Setenv("PORT", "4100")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 4100 {
		t.Errorf("port = %d, want 4100 from PORT", cfg.HTTP.Port)
	}

	t.Setenv("TUNNELFIGHT_HTTP_PORT", "4200")
	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 4200 {
		t.Errorf("port = %d, want prefixed variable to win", cfg.HTTP.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		want   string
	}{
		{"port", func(c *ServerConfig) { c.HTTP.Port = 70000 }, "http.port"},
		{"samples above max", func(c *ServerConfig) { c.Simulation.DefaultSamples = 51 }, "default_samples"},
		{"no iteration cap", func(c *ServerConfig) { c.Simulation.MaxIterations = 0 }, "max_iterations"},
		{"body limit", func(c *ServerConfig) { c.HTTP.MaxBodyBytes = 0 }, "max_body_bytes"},
		{"no workers", func(c *ServerConfig) { c.Simulation.Workers = 0 }, "workers"},
		{"driver", func(c *ServerConfig) { c.Database.Driver = "mysql" }, "database.driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig_RejectsInvalid(t *testing.T) {
	t.Setenv("TUNNELFIGHT_SIM_WORKERS", "0")
	if _, err := LoadConfig(""); err == nil {
		t.Error("expected validation error")
	}
}

func TestIsOriginAllowed_EmptyList_SameOrigin(t *testing.T) {
	cfg := WebSocketConfig{AllowedOrigins: []string{}}

	if !cfg.IsOriginAllowed("", "localhost:3000") {
		t.Error("expected empty origin to be allowed (same-origin)")
	}
	if !cfg.IsOriginAllowed("http://localhost:3000", "localhost:3000") {
		t.Error("expected matching origin to be allowed (same-origin)")
	}
	if cfg.IsOriginAllowed("http://evil.com", "localhost:3000") {
		t.Error("expected different origin to be rejected (same-origin policy)")
	}
}

func TestIsOriginAllowed_Wildcard(t *testing.T) {
	cfg := WebSocketConfig{AllowedOrigins: []string{"*"}}

	if !cfg.IsOriginAllowed("http://anything.com", "localhost:3000") {
		t.Error("expected wildcard to allow any origin")
	}
	if !cfg.IsOriginAllowed("", "localhost:3000") {
		t.Error("expected wildcard to allow empty origin")
	}
}

func TestIsOriginAllowed_ExactMatch(t *testing.T) {
	cfg := WebSocketConfig{
		AllowedOrigins: []string{"https://example.com", "http://localhost:5173"},
	}

	if !cfg.IsOriginAllowed("https://example.com", "localhost:3000") {
		t.Error("expected exact match to be allowed")
	}
	if !cfg.IsOriginAllowed("http://localhost:5173", "localhost:3000") {
		t.Error("expected exact match to be allowed")
	}
	if cfg.IsOriginAllowed("http://evil.com", "localhost:3000") {
		t.Error("expected non-matching origin to be rejected")
	}
	if cfg.IsOriginAllowed("https://example.com:8080", "localhost:3000") {
		t.Error("expected partial match to be rejected")
	}
}

func TestIsSameOrigin(t *testing.T) {
	tests := []struct {
		origin      string
		requestHost string
		expected    bool
	}{
		{"", "localhost:3000", true},
		{"http://localhost:3000", "localhost:3000", true},
		{"https://localhost:3000", "localhost:3000", true},
		{"http://localhost:3000/", "localhost:3000", true},
		{"http://example.com", "localhost:3000", false},
		{"http://localhost:4000", "localhost:3000", false},
		{"ws://localhost:3000", "localhost:3000", true},
	}

	for _, tt := range tests {
		if got := isSameOrigin(tt.origin, tt.requestHost); got != tt.expected {
			t.Errorf("isSameOrigin(%q, %q) = %v, want %v", tt.origin, tt.requestHost, got, tt.expected)
		}
	}
}
