package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alecgard/pasteagent/internal/ratelimit"
)

type Config struct {
	Pastebin PastebinConfig `yaml:"pastebin"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Metering MeteringConfig `yaml:"metering"`
	Session  SessionConfig  `yaml:"session"`
	Logging  LoggingConfig  `yaml:"logging"`
	CORS     CORSConfig     `yaml:"cors"`
}

type PastebinConfig struct {
	APIKey        string        `yaml:"api_key"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	RateLimitMode string        `yaml:"rate_limit_mode"` // none, burst or pace
	LoginURL      string        `yaml:"login_url"`
	APIURL        string        `yaml:"api_url"`
	RawURL        string        `yaml:"raw_url"`
	UserAgent     string        `yaml:"user_agent"`
	Timeout       time.Duration `yaml:"timeout"` // 0 leaves the transport default
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	TokenHash    string        `yaml:"token_hash"` // bcrypt hash; empty disables gateway auth
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // empty disables the call log
}

type MeteringConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type SessionConfig struct {
	File          string `yaml:"file"`
	EncryptionKey string `yaml:"encryption_key"` // hex, 32 bytes; empty stores the key in plain text
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Pastebin: PastebinConfig{
			RateLimitMode: "burst",
			UserAgent:     "pasteagent",
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 90 * time.Second, // a burst delay can hold a request for up to a minute
		},
		Metering: MeteringConfig{
			BatchSize:     50,
			FlushInterval: 5 * time.Second,
		},
		Session: SessionConfig{
			File: defaultSessionFile(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "pasteagent", "session")
}

// envRef matches ${VAR} references. Bare $VAR is left alone so bcrypt hashes
// survive expansion.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PASTEAGENT_API_KEY"); v != "" {
		cfg.Pastebin.APIKey = v
	}
	if v := os.Getenv("PASTEAGENT_USERNAME"); v != "" {
		cfg.Pastebin.Username = v
	}
	if v := os.Getenv("PASTEAGENT_PASSWORD"); v != "" {
		cfg.Pastebin.Password = v
	}
	if v := os.Getenv("PASTEAGENT_RATE_LIMIT_MODE"); v != "" {
		cfg.Pastebin.RateLimitMode = v
	}
	if v := os.Getenv("PASTEAGENT_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PASTEAGENT_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PASTEAGENT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PASTEAGENT_SESSION_ENCRYPTION_KEY"); v != "" {
		cfg.Session.EncryptionKey = v
	}
	if v := os.Getenv("PASTEAGENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the settings every Pastebin-facing command needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Pastebin.APIKey == "" {
		errs = append(errs, errors.New("pastebin.api_key is required"))
	}
	if _, err := ratelimit.ParseMode(c.Pastebin.RateLimitMode); err != nil {
		errs = append(errs, fmt.Errorf("pastebin.rate_limit_mode: %w", err))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Pastebin.Timeout < 0 {
		errs = append(errs, errors.New("pastebin.timeout must not be negative"))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server read and write timeouts must be positive"))
	}
	if c.Metering.BatchSize <= 0 {
		errs = append(errs, errors.New("metering.batch_size must be positive"))
	}
	if c.Metering.FlushInterval <= 0 {
		errs = append(errs, errors.New("metering.flush_interval must be positive"))
	}
	if c.Session.EncryptionKey != "" && len(c.Session.EncryptionKey) != 64 {
		errs = append(errs, errors.New("session.encryption_key must be 64 hex characters"))
	}
	return errors.Join(errs...)
}

// RateLimitMode returns the parsed limiter mode.
func (c *Config) RateLimitMode() (ratelimit.Mode, error) {
	return ratelimit.ParseMode(c.Pastebin.RateLimitMode)
}

// LogLevel returns the configured slog level, falling back to info.
func (c *Config) LogLevel() slog.Level {
	level, err := parseLevel(c.Logging.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) MigrationsSource() string {
	return "file://migrations"
}

func (c *Config) DatabaseURLForMigrate() string {
	url := c.Database.URL
	if !strings.Contains(url, "sslmode=") {
		if strings.Contains(url, "?") {
			url += "&sslmode=disable"
		} else {
			url += "?sslmode=disable"
		}
	}
	return url
}
