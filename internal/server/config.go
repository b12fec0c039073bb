// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat service.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/hellochat/internal/logger"
)

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 16 << 20
	defaultSendQueueSize   = 256
	defaultReadTimeout     = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultPongWait        = 60 * time.Second
	defaultWriteWait       = 10 * time.Second
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
// A zero Burst disables limiting.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

// ProfilerConfig enables the pprof listener when Enabled is set.
type ProfilerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Config holds the server configuration settings.
type Config struct {
	Port           string          `yaml:"port"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	MaxMessageSize int64           `yaml:"max_message_size"`
	SendQueueSize  int             `yaml:"send_queue_size"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`

	// WriteTimeout stays zero by default: sleep and download responses may
	// legitimately run for as long as the client asked.
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// PongWait is how long a WebSocket peer may stay silent before it is
	// considered gone. Pings go out at 9/10 of it.
	PongWait  time.Duration `yaml:"pong_wait"`
	WriteWait time.Duration `yaml:"write_wait"`

	Logger   logger.Config  `yaml:"logger"`
	Profiler ProfilerConfig `yaml:"profiler"`
}

func defaultConfig() Config {
	return Config{
		Port:            defaultPort,
		MaxMessageSize:  defaultMaxMessageSize,
		SendQueueSize:   defaultSendQueueSize,
		ReadTimeout:     defaultReadTimeout,
		IdleTimeout:     defaultIdleTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
		PongWait:        defaultPongWait,
		WriteWait:       defaultWriteWait,
		Logger:          logger.DefaultConfig(),
		Profiler: ProfilerConfig{
			Host: "127.0.0.1",
			Port: 6060,
		},
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig builds the configuration from defaults, the optional YAML file at
// path and environment overrides, in that order. The result is sanitized and
// validated.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}

	applyEnv(&cfg)
	cfg.Sanitize()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.RateLimit.RefillInterval)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logger.Level = level
	}
}

// Sanitize replaces unset or non-positive values with their defaults and
// normalizes the origin allowlist.
func (c *Config) Sanitize() {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaultSendQueueSize
	}
	if c.RateLimit.Burst < 0 {
		c.RateLimit.Burst = 0
	}
	if c.RateLimit.Burst > 0 && c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout < 0 {
		c.WriteTimeout = 0
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}

	c.AllowedOrigins = normalizeOrigins(c.AllowedOrigins)
}

// Validate checks the values Sanitize cannot repair.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.By(validateListenAddr)),
		validation.Field(&c.Logger, validation.By(func(value interface{}) error {
			lc, _ := value.(logger.Config)
			if !logger.ValidLevel(lc.Level) {
				return errors.Errorf("unknown log level %q", lc.Level)
			}
			return nil
		})),
		validation.Field(&c.Profiler, validation.By(func(value interface{}) error {
			pc, _ := value.(ProfilerConfig)
			if pc.Enabled && (pc.Port < 1 || pc.Port > 65535) {
				return errors.Errorf("profiler port must be between 1 and 65535, got %d", pc.Port)
			}
			return nil
		})),
	)
}

// pingPeriod is the keep-alive interval derived from PongWait.
func (c *Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

func validateListenAddr(value interface{}) error {
	addr, _ := value.(string)
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return errors.New("must be in host:port form")
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil || port < 0 || port > 65535 {
		return errors.Errorf("invalid port in %q", addr)
	}
	return nil
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
		return parsed
	}
	return defaultValue
}

func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
