package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{" warn ", slog.LevelWarn},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig returned error for missing file: %v", err)
	}
	if config != DefaultConfig() {
		t.Errorf("LoadConfig() = %+v, want defaults %+v", config, DefaultConfig())
	}
	if config.FilePath != "logs/tunnelfight.log" {
		t.Errorf("default FilePath = %q", config.FilePath)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `logging:
  level: DEBUG
  console_format: json
  file_enabled: true
  file_path: test.log
  file_max_size_mb: 20
`
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Level != "DEBUG" {
		t.Errorf("Level = %q, want %q", config.Level, "DEBUG")
	}
	if config.ConsoleFormat != "json" {
		t.Errorf("ConsoleFormat = %q, want %q", config.ConsoleFormat, "json")
	}
	if !config.ConsoleEnabled {
		t.Error("ConsoleEnabled should keep its default when absent from the file")
	}
	if !config.FileEnabled || config.FilePath != "test.log" {
		t.Errorf("file settings = %v %q", config.FileEnabled, config.FilePath)
	}
	if config.FileMaxSizeMB != 20 || config.FileMaxBackups != 5 {
		t.Errorf("rotation = %d MB / %d backups, want 20 / 5", config.FileMaxSizeMB, config.FileMaxBackups)
	}
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestEnvVarOverride(t *testing.T) {
	t.Setenv("TUNNELFIGHT_LOG_LEVEL", "ERROR")
	t.Setenv("TUNNELFIGHT_LOG_CONSOLE_FORMAT", "json")
	t.Setenv("TUNNELFIGHT_LOG_FILE_ENABLED", "true")
	t.Setenv("TUNNELFIGHT_LOG_FILE_PATH", "/custom/path.log")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.Level != "ERROR" {
		t.Errorf("Level = %q, want %q (from env var)", config.Level, "ERROR")
	}
	if config.ConsoleFormat != "json" {
		t.Errorf("ConsoleFormat = %q, want %q (from env var)", config.ConsoleFormat, "json")
	}
	if !config.FileEnabled {
		t.Error("FileEnabled = false, want true (from env var)")
	}
	if config.FilePath != "/custom/path.log" {
		t.Errorf("FilePath = %q, want %q (from env var)", config.FilePath, "/custom/path.log")
	}
}

func TestInvalidEnvValue(t *testing.T) {
	t.Setenv("TUNNELFIGHT_LOG_FILE_MAX_SIZE_MB", "lots")
	if _, err := LoadConfig(""); err == nil {
		t.Error("expected an error for a non-numeric size")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(newHandler(&buf, "text", slog.LevelError))
	t.Cleanup(func() { logger = nil })

	Debug("Debug message")
	Info("Info message")
	Warning("Warning")
	Error("Error message")
	Always("Always message")

	output := buf.String()
	for _, absent := range []string{"Debug message", "Info message", "Warning"} {
		if strings.Contains(output, absent) {
			t.Errorf("%q appeared when level is ERROR", absent)
		}
	}
	if !strings.Contains(output, "Error message") {
		t.Error("ERROR message missing from output")
	}
	if !strings.Contains(output, "level=ALWAYS") || !strings.Contains(output, "Always message") {
		t.Errorf("ALWAYS message missing or mislabeled: %s", output)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(newHandler(&buf, "JSON", slog.LevelInfo))
	t.Cleanup(func() { logger = nil })

	Infof("batch %s", "done")
	Info("progress", "completed", 150, "encounter", "goblins")

	output := buf.String()
	for _, want := range []string{`"msg":"batch done"`, `"completed":150`, `"encounter":"goblins"`} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %s: %s", want, output)
		}
	}
}

func TestFanout(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := fanout{
		slog.NewTextHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
	logger = slog.New(h).With("request", "abc")
	t.Cleanup(func() { logger = nil })

	Info("only first")
	Warning("both")

	if !strings.Contains(buf1.String(), "only first") || !strings.Contains(buf1.String(), "both") {
		t.Errorf("first handler output = %s", buf1.String())
	}
	if strings.Contains(buf2.String(), "only first") {
		t.Error("second handler received a record below its level")
	}
	if !strings.Contains(buf2.String(), "request=abc") {
		t.Error("attributes were not passed to the second handler")
	}
}

func TestInitializeWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	config := DefaultConfig()
	config.ConsoleEnabled = false
	config.FileEnabled = true
	config.FilePath = path

	if err := Initialize(config); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { logger = nil })

	Info("written to disk", "iterations", 30000)
	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), "iterations=30000") {
		t.Errorf("log file contents = %s", data)
	}
}

func TestInitializeRequiresFilePath(t *testing.T) {
	config := DefaultConfig()
	config.FileEnabled = true
	config.FilePath = ""
	if err := Initialize(config); err == nil {
		t.Error("expected an error for file logging without a path")
	}
}

func TestNilLogger(t *testing.T) {
	logger = nil

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logging with nil logger caused panic: %v", r)
		}
	}()

	Debug("debug")
	Info("info")
	Warning("warning")
	Error("error")
	Always("always")

	if Slog() == nil {
		t.Error("Slog() returned nil before Initialize")
	}
}
