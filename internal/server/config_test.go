package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

// TestNewConfigDefaults verifies the built-in defaults.
func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Expected port :8080, got %s", cfg.Port)
	}
	if cfg.MaxMessageSize != 16<<20 {
		t.Errorf("Expected max message size %d, got %d", 16<<20, cfg.MaxMessageSize)
	}
	if cfg.SendQueueSize != 256 {
		t.Errorf("Expected send queue size 256, got %d", cfg.SendQueueSize)
	}
	if cfg.RateLimit.Burst != 0 {
		t.Errorf("Expected rate limiting to be off, got burst %d", cfg.RateLimit.Burst)
	}
	if cfg.WriteTimeout != 0 {
		t.Errorf("Expected unbounded write timeout, got %s", cfg.WriteTimeout)
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Errorf("Expected empty origin allowlist, got %v", cfg.AllowedOrigins)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Expected log level info, got %s", cfg.Logger.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

// TestLoadConfigWithoutFile verifies an empty path yields the defaults.
func TestLoadConfigWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Errorf("Expected default port, got %s", cfg.Port)
	}
}

// TestLoadConfigFromYAML verifies file values override the defaults.
func TestLoadConfigFromYAML(t *testing.T) {
	path := writeConfigFile(t, `
port: ":9090"
allowed_origins:
  - "https://Chat.Example/"
  - "  "
max_message_size: 4096
send_queue_size: 32
rate_limit:
  burst: 5
  refill_interval: 2s
read_timeout: 5s
pong_wait: 30s
logger:
  level: debug
  pretty_print: true
profiler:
  enabled: true
  port: 7070
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Port != ":9090" {
		t.Errorf("Expected port :9090, got %s", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://chat.example" {
		t.Errorf("Expected normalized origin list, got %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 4096 || cfg.SendQueueSize != 32 {
		t.Errorf("Unexpected limits: max %d queue %d", cfg.MaxMessageSize, cfg.SendQueueSize)
	}
	if cfg.RateLimit.Burst != 5 || cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("Unexpected rate limit: %+v", cfg.RateLimit)
	}
	if cfg.ReadTimeout != 5*time.Second || cfg.PongWait != 30*time.Second {
		t.Errorf("Unexpected timeouts: read %s pong %s", cfg.ReadTimeout, cfg.PongWait)
	}
	if cfg.IdleTimeout != defaultIdleTimeout {
		t.Errorf("Expected unset idle timeout to keep its default, got %s", cfg.IdleTimeout)
	}
	if cfg.Logger.Level != "debug" || !cfg.Logger.PrettyPrint {
		t.Errorf("Unexpected logger config: %+v", cfg.Logger)
	}
	if !cfg.Profiler.Enabled || cfg.Profiler.Port != 7070 || cfg.Profiler.Host != "127.0.0.1" {
		t.Errorf("Unexpected profiler config: %+v", cfg.Profiler)
	}
}

// TestLoadConfigEnvOverridesFile verifies environment variables win over the file.
func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "port: \":9090\"\n")

	t.Setenv("SERVER_PORT", ":7000")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "10")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Port != ":7000" {
		t.Errorf("Expected port :7000, got %s", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("Unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 2048 {
		t.Errorf("Expected max message size 2048, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 3 || cfg.RateLimit.RefillInterval != 10*time.Second {
		t.Errorf("Unexpected rate limit: %+v", cfg.RateLimit)
	}
	if cfg.Logger.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", cfg.Logger.Level)
	}
}

// TestLoadConfigIgnoresGarbageEnv verifies unparsable values fall back to defaults.
func TestLoadConfigIgnoresGarbageEnv(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "lots")
	t.Setenv("RATE_LIMIT_BURST", "-4")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "soon")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.MaxMessageSize != defaultMaxMessageSize {
		t.Errorf("Expected default max message size, got %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 0 {
		t.Errorf("Expected rate limiting to stay off, got burst %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != 0 {
		t.Errorf("Expected no refill interval, got %s", cfg.RateLimit.RefillInterval)
	}
}

// TestLoadConfigErrors verifies unreadable, unparsable and invalid configs fail.
func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") }},
		{"bad yaml", func(t *testing.T) string { return writeConfigFile(t, "port: [unclosed") }},
		{"bad duration", func(t *testing.T) string { return writeConfigFile(t, "pong_wait: forever\n") }},
		{"bad port", func(t *testing.T) string { return writeConfigFile(t, "port: \"8080\"\n") }},
		{"port out of range", func(t *testing.T) string { return writeConfigFile(t, "port: \":70000\"\n") }},
		{"bad log level", func(t *testing.T) string { return writeConfigFile(t, "logger:\n  level: loud\n") }},
		{"bad profiler port", func(t *testing.T) string {
			return writeConfigFile(t, "profiler:\n  enabled: true\n  port: 0\n")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(tt.path(t)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

// TestSanitizeRepairsValues verifies non-positive values are replaced.
func TestSanitizeRepairsValues(t *testing.T) {
	cfg := &Config{
		MaxMessageSize: -1,
		SendQueueSize:  0,
		RateLimit:      RateLimitConfig{Burst: 2},
		ReadTimeout:    -time.Second,
		WriteTimeout:   -time.Second,
		AllowedOrigins: []string{"", "*", "not a url", "HTTP://Example.com:8080/path"},
	}
	cfg.Sanitize()

	if cfg.Port != defaultPort {
		t.Errorf("Expected default port, got %q", cfg.Port)
	}
	if cfg.MaxMessageSize != defaultMaxMessageSize || cfg.SendQueueSize != defaultSendQueueSize {
		t.Errorf("Expected default limits, got max %d queue %d", cfg.MaxMessageSize, cfg.SendQueueSize)
	}
	if cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("Expected refill interval to default to 1s, got %s", cfg.RateLimit.RefillInterval)
	}
	if cfg.ReadTimeout != defaultReadTimeout || cfg.WriteTimeout != 0 {
		t.Errorf("Unexpected timeouts: read %s write %s", cfg.ReadTimeout, cfg.WriteTimeout)
	}
	if cfg.PongWait != defaultPongWait || cfg.pingPeriod() != defaultPongWait*9/10 {
		t.Errorf("Unexpected keep-alive: pong %s ping %s", cfg.PongWait, cfg.pingPeriod())
	}

	want := []string{"*", "http://example.com:8080"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("Expected origins %v, got %v", want, cfg.AllowedOrigins)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Errorf("Origin %d: expected %q, got %q", i, want[i], cfg.AllowedOrigins[i])
		}
	}
}
