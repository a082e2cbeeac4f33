package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Push     PushConfig     `yaml:"push"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Tracking TrackingConfig `yaml:"tracking"`
	Log      LogConfig      `yaml:"log"`
}

// DispatchConfig bounds the delivery fan-out of a single campaign.
type DispatchConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
	// DeadlineSeconds is an optional ceiling for a whole dispatch; 0 waits for every send.
	DeadlineSeconds int           `yaml:"deadline_seconds"`
	Deadline        time.Duration `yaml:"-"`
	// Campaigns left dispatching longer than StaleAfter by a crashed process are discarded
	// every SweepInterval. The sweeper only runs when a deadline is set; a negative
	// sweep_interval_seconds disables it as well.
	SweepIntervalSeconds int           `yaml:"sweep_interval_seconds"`
	SweepInterval        time.Duration `yaml:"-"`
	StaleAfterSeconds    int           `yaml:"stale_after_seconds"`
	StaleAfter           time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys and protocol options for web push.
type PushConfig struct {
	PublicKey          string        `yaml:"vapid_public_key"`
	PrivateKey         string        `yaml:"vapid_private_key"`
	Subject            string        `yaml:"subject"`
	TTL                int           `yaml:"ttl"`
	Urgency            string        `yaml:"urgency"`
	SendTimeoutSeconds int           `yaml:"send_timeout_seconds"`
	SendTimeout        time.Duration `yaml:"-"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	PublicBaseURL   string  `yaml:"public_base_url"`
	TenantHeader    string  `yaml:"tenant_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// TrackingConfig configures click tracking.
type TrackingConfig struct {
	LookupCacheSeconds int `yaml:"lookup_cache_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogQueries             bool   `yaml:"log_queries"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File enables a rotated log file alongside stdout when set.
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load reads the configuration from the given path. A .env file in the working
// directory is loaded first so secrets can be supplied through the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("VAPID_PUBLIC_KEY"); v != "" {
		cfg.Push.PublicKey = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}

const (
	defaultConcurrency = 100
	maxConcurrency     = 500
)

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.TenantHeader == "" {
		cfg.Server.TenantHeader = "X-Tenant-ID"
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.Urgency == "" {
		cfg.Push.Urgency = "normal"
	}
	if cfg.Push.SendTimeoutSeconds <= 0 {
		cfg.Push.SendTimeoutSeconds = 10
	}
	cfg.Push.SendTimeout = time.Duration(cfg.Push.SendTimeoutSeconds) * time.Second

	if cfg.Dispatch.MaxConcurrency <= 0 {
		cfg.Dispatch.MaxConcurrency = defaultConcurrency
	}
	if cfg.Dispatch.MaxConcurrency > maxConcurrency {
		cfg.Dispatch.MaxConcurrency = maxConcurrency
	}
	if cfg.Dispatch.DeadlineSeconds > 0 {
		cfg.Dispatch.Deadline = time.Duration(cfg.Dispatch.DeadlineSeconds) * time.Second
	}

	if cfg.Dispatch.SweepIntervalSeconds == 0 {
		cfg.Dispatch.SweepIntervalSeconds = 300
	}
	// Without a deadline a dispatch has no upper bound, so no age proves it dead.
	if cfg.Dispatch.SweepIntervalSeconds > 0 && cfg.Dispatch.Deadline > 0 {
		cfg.Dispatch.SweepInterval = time.Duration(cfg.Dispatch.SweepIntervalSeconds) * time.Second
	}
	if cfg.Dispatch.StaleAfterSeconds <= 0 {
		cfg.Dispatch.StaleAfterSeconds = 3600
	}
	cfg.Dispatch.StaleAfter = time.Duration(cfg.Dispatch.StaleAfterSeconds) * time.Second
	// A campaign inside its dispatch deadline is never stale.
	if cfg.Dispatch.Deadline > 0 && cfg.Dispatch.StaleAfter <= cfg.Dispatch.Deadline {
		cfg.Dispatch.StaleAfter = 2 * cfg.Dispatch.Deadline
	}

	if cfg.Tracking.LookupCacheSeconds <= 0 {
		cfg.Tracking.LookupCacheSeconds = 300
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 100
	}
}
