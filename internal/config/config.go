package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/places-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Import   ImportConfig   `yaml:"import" mapstructure:"import"`
	Dedupe   DedupeConfig   `yaml:"dedupe" mapstructure:"dedupe"`
	Cleanup  CleanupConfig  `yaml:"cleanup" mapstructure:"cleanup"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ProviderConfig holds Places API credentials and throttle settings.
type ProviderConfig struct {
	APIKey    string      `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string      `yaml:"base_url" mapstructure:"base_url"`
	RPSBudget int         `yaml:"rps_budget" mapstructure:"rps_budget"`
	Retry     RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig tunes transient-failure retries for provider calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	Jitter           float64 `yaml:"jitter" mapstructure:"jitter"`
}

// ImportConfig configures import job defaults.
type ImportConfig struct {
	Region          string  `yaml:"region" mapstructure:"region"`
	RadiusMeters    float64 `yaml:"radius_meters" mapstructure:"radius_meters"`
	MaxResults      int     `yaml:"max_results" mapstructure:"max_results"`
	CategoryMapPath string  `yaml:"category_map_path" mapstructure:"category_map_path"`
}

// DedupeConfig configures duplicate detection.
type DedupeConfig struct {
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// CleanupConfig configures retention of stale unclaimed records.
type CleanupConfig struct {
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int     `yaml:"port" mapstructure:"port"`
	RPS  float64 `yaml:"rps" mapstructure:"rps"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLACES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "places.db")
	v.SetDefault("provider.rps_budget", 10)
	v.SetDefault("provider.retry.max_attempts", 3)
	v.SetDefault("provider.retry.initial_backoff_ms", 400)
	v.SetDefault("provider.retry.max_backoff_ms", 20000)
	v.SetDefault("provider.retry.multiplier", 2.0)
	v.SetDefault("provider.retry.jitter", 0.2)
	v.SetDefault("import.region", "CI")
	v.SetDefault("import.radius_meters", 10000)
	v.SetDefault("import.max_results", 60)
	v.SetDefault("dedupe.threshold", 0.8)
	v.SetDefault("cleanup.retention_days", 90)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rps", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// ValidateProvider checks the settings required for commands that call the
// provider. Kept separate from Load so offline commands (dedupe, claims)
// work without credentials.
func (c *Config) ValidateProvider() error {
	if c.Provider.APIKey == "" {
		return eris.New("config: provider.api_key is required (set PLACES_PROVIDER_API_KEY)")
	}
	if c.Provider.RPSBudget <= 0 {
		return eris.Errorf("config: provider.rps_budget must be positive, got %d", c.Provider.RPSBudget)
	}
	return nil
}

// ValidateStore checks the storage settings.
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return eris.New("config: store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// RetryPolicy converts the retry settings to a resilience policy.
func (c *ProviderConfig) RetryPolicy() resilience.Policy {
	p := resilience.DefaultPolicy()
	if c.Retry.MaxAttempts > 0 {
		p.MaxAttempts = c.Retry.MaxAttempts
	}
	if c.Retry.InitialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(c.Retry.InitialBackoffMs) * time.Millisecond
	}
	if c.Retry.MaxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(c.Retry.MaxBackoffMs) * time.Millisecond
	}
	if c.Retry.Multiplier > 0 {
		p.Multiplier = c.Retry.Multiplier
	}
	if c.Retry.Jitter >= 0 {
		p.Jitter = c.Retry.Jitter
	}
	return p
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
