package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		CommitTimeoutSeconds  int     `yaml:"commit_timeout_seconds"`
		MaxAdvanceDays        int     `yaml:"max_advance_days"`
		NoShowGraceHours      int     `yaml:"no_show_grace_hours"`
		SweepIntervalMinutes  int     `yaml:"sweep_interval_minutes"`
		RateLimitPerSecond    float64 `yaml:"rate_limit_per_second"`
		RateLimitBurst        int     `yaml:"rate_limit_burst"`
	} `yaml:"booking"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/pitstop.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) CommitTimeout() time.Duration {
	if c.Booking.CommitTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Booking.CommitTimeoutSeconds) * time.Second
}

func (c *Config) NoShowGrace() time.Duration {
	if c.Booking.NoShowGraceHours <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.Booking.NoShowGraceHours) * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	if c.Booking.SweepIntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.Booking.SweepIntervalMinutes) * time.Minute
}

func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
