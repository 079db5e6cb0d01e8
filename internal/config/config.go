package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Report  ReportConfig  `mapstructure:"report"`
	Source  SourceConfig  `mapstructure:"source"`
}

// StorageConfig defines cache storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Password    string `mapstructure:"password"`
	DB          int    `mapstructure:"db"`
	KeyPrefix   string `mapstructure:"key_prefix"`
	DialTimeout string `mapstructure:"dial_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReportConfig defines expected-hours policy defaults
type ReportConfig struct {
	ExpectedHours   float64 `mapstructure:"expected_hours"`
	IncludeWeekends bool    `mapstructure:"include_weekends"`
}

// SourceConfig defines log source settings
type SourceConfig struct {
	Command  string `mapstructure:"command"`  // unified log binary, normally "log"
	Timeout  string `mapstructure:"timeout"`  // per-day fetch timeout
	Timezone string `mapstructure:"timezone"` // IANA name, empty = system local
}

// ExpectedPerDay returns the expected working hours as a duration.
func (r ReportConfig) ExpectedPerDay() time.Duration {
	return time.Duration(r.ExpectedHours * float64(time.Hour))
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TIMEBUDDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
					return nil, fmt.Errorf("failed to read config file: %w", err)
				}
			}
			// Config file not found, use defaults and environment variables
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// DefaultCachePath returns the platform application-support location of
// the cache file.
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "timebuddy.bolt"
	}
	return filepath.Join(home, "Library", "Application Support", "TimeBuddy", "timebuddy.bolt")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", DefaultCachePath())
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.dial_timeout", "5s")

	// Logging defaults
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "text")

	// Report defaults
	v.SetDefault("report.expected_hours", 7.5)
	v.SetDefault("report.include_weekends", false)

	// Source defaults
	v.SetDefault("source.command", "log")
	v.SetDefault("source.timeout", "30s")
	v.SetDefault("source.timezone", "")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Report.ExpectedHours <= 0 || cfg.Report.ExpectedHours > 24 {
		return fmt.Errorf("invalid expected hours per day: %v", cfg.Report.ExpectedHours)
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	if _, err := time.ParseDuration(cfg.Source.Timeout); err != nil {
		return fmt.Errorf("invalid source timeout: %w", err)
	}

	if cfg.Source.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Source.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", cfg.Source.Timezone, err)
		}
	}

	return nil
}
