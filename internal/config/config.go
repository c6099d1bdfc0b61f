package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Sync    SyncConfig    `yaml:"sync"`
	Network NetworkConfig `yaml:"network"`
	Admin   AdminConfig   `yaml:"admin"`
	Logging LoggingConfig `yaml:"logging"`
	Exports ExportConfig  `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// ServerConfig points at the remote school API the queue syncs against.
type ServerConfig struct {
	BaseURL               string `yaml:"base_url"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	TokenEnv              string `yaml:"token_env"`
}

type StorageConfig struct {
	// Backend selects the durable store: file, sqlite or redis.
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
	// Failover pairs the selected backend with an in-memory fallback.
	Failover bool `yaml:"failover"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type SyncConfig struct {
	BatchSize              int         `yaml:"batch_size"`
	RetentionMinutes       int         `yaml:"retention_minutes"`
	IntervalSeconds        int         `yaml:"interval_seconds"`
	JanitorIntervalSeconds int         `yaml:"janitor_interval_seconds"`
	RequestsPerSecond      float64     `yaml:"requests_per_second"`
	Burst                  int         `yaml:"burst"`
	Retry                  RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxRetries          int     `yaml:"max_retries"`
	InitialDelaySeconds int     `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int     `yaml:"max_delay_seconds"`
	BackoffFactor       float64 `yaml:"backoff_factor"`
}

type NetworkConfig struct {
	ProbeURL             string `yaml:"probe_url"`
	ProbeIntervalSeconds int    `yaml:"probe_interval_seconds"`
	SlowThresholdMillis  int    `yaml:"slow_threshold_millis"`
}

type AdminConfig struct {
	Enabled   bool                 `yaml:"enabled"`
	Port      int                  `yaml:"port"`
	Auth      AdminAuthConfig      `yaml:"auth"`
	RateLimit AdminRateLimitConfig `yaml:"rate_limit"`
}

type AdminAuthConfig struct {
	Enabled      bool     `yaml:"enabled"`
	HeaderAPIKey string   `yaml:"header_api_key"`
	APIKeys      []string `yaml:"api_keys"`
}

type AdminRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// Load reads .env (when present), expands environment references inside the
// YAML file and unmarshals it.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return errors.New("server base_url is required")
	}

	switch c.Storage.Backend {
	case "file", "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for backend %q", c.Storage.Backend)
		}
	case "redis":
		if c.Storage.Redis.Address == "" {
			return errors.New("storage redis address is required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Sync.BatchSize < 0 {
		return errors.New("sync batch_size cannot be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "sisko"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "file"
	}
	if c.Server.RequestTimeoutSeconds == 0 {
		c.Server.RequestTimeoutSeconds = 30
	}
	if c.Server.TokenEnv == "" {
		c.Server.TokenEnv = "SISKO_API_TOKEN"
	}

	if c.Sync.BatchSize == 0 {
		c.Sync.BatchSize = 5
	}
	if c.Sync.RetentionMinutes == 0 {
		c.Sync.RetentionMinutes = 60
	}
	if c.Sync.IntervalSeconds == 0 {
		c.Sync.IntervalSeconds = 60
	}
	if c.Sync.JanitorIntervalSeconds == 0 {
		c.Sync.JanitorIntervalSeconds = 600
	}
	if c.Sync.Retry.MaxRetries == 0 {
		c.Sync.Retry.MaxRetries = 5
	}
	if c.Sync.Retry.InitialDelaySeconds == 0 {
		c.Sync.Retry.InitialDelaySeconds = 2
	}
	if c.Sync.Retry.MaxDelaySeconds == 0 {
		c.Sync.Retry.MaxDelaySeconds = 60
	}
	if c.Sync.Retry.BackoffFactor == 0 {
		c.Sync.Retry.BackoffFactor = 2
	}

	if c.Network.ProbeURL == "" {
		c.Network.ProbeURL = c.Server.BaseURL
	}
	if c.Network.ProbeIntervalSeconds == 0 {
		c.Network.ProbeIntervalSeconds = 15
	}
	if c.Network.SlowThresholdMillis == 0 {
		c.Network.SlowThresholdMillis = 2000
	}

	if c.Admin.Port == 0 {
		c.Admin.Port = 8090
	}
	if c.Admin.Auth.HeaderAPIKey == "" {
		c.Admin.Auth.HeaderAPIKey = "x-api-key"
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
