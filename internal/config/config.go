package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
	KeyAuth  KeyAuthConfig  `yaml:"keyauth"`
	Token    TokenConfig    `yaml:"token"`
	Database DatabaseConfig `yaml:"database"`
}

// ServerConfig contains HTTP server configuration. Defaults live in
// Default() only; tag-level defaults would overwrite file-provided values
// whenever the corresponding env var is unset. Single-word fields carry no
// envconfig tag because a bare tag name doubles as an unprefixed env var
// fallback, so PATH or PORT from the ambient environment would leak in.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains per-IP rate limiting configuration.
// The defaults mirror the public API policy: 100 requests per 15 minutes.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// KeyAuthConfig contains the upstream key-authority configuration.
// SellerKey is the credential for the seller API and is required at startup.
type KeyAuthConfig struct {
	BaseURL   string        `yaml:"base_url" envconfig:"BASE_URL"`
	SellerKey string        `yaml:"seller_key" envconfig:"SELLER_KEY"`
	Timeout   time.Duration `yaml:"timeout"`
}

// TokenConfig contains session token signing configuration.
// Rotating the secret invalidates all outstanding tokens and forces
// clients through full re-validation.
type TokenConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
	Issuer string        `yaml:"issuer"`
}

// DatabaseConfig contains persistent store configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Load loads configuration from environment variables and an optional config file.
// Environment variables (SORYN_ prefix) take precedence over file values.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = fileConfig
	}

	if err := envconfig.Process("SORYN", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration. Missing required secrets are
// startup failures, not request-time failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Token.Secret == "" {
		return fmt.Errorf("token signing secret is required (SORYN_TOKEN_SECRET)")
	}

	if c.Token.TTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}

	if c.KeyAuth.SellerKey == "" {
		return fmt.Errorf("key-authority seller key is required (SORYN_KEYAUTH_SELLER_KEY)")
	}

	if c.KeyAuth.BaseURL == "" {
		return fmt.Errorf("key-authority base URL must not be empty")
	}

	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.Requests <= 0 {
			return fmt.Errorf("rate limit request count must be positive")
		}
		if c.Security.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}

	if len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}

	// Always JSON format for structured log aggregation
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration. The required secrets are left
// empty on purpose; Validate rejects them until they are supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled:  true,
				Requests: 100,
				Window:   15 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		KeyAuth: KeyAuthConfig{
			BaseURL: "https://keyauth.win/api/seller/",
			Timeout: 10 * time.Second,
		},
		Token: TokenConfig{
			TTL:    24 * time.Hour,
			Issuer: "soryn-auth",
		},
		Database: DatabaseConfig{
			Path: "data/auth.db",
		},
	}
}
