package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Patterns  PatternsConfig  `yaml:"patterns" mapstructure:"patterns"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// PatternsConfig locates the pattern definition files.
type PatternsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ScoringConfig configures label boundaries on the 0-100 index.
type ScoringConfig struct {
	LikelyHumanBelow int `yaml:"likely_human_below" mapstructure:"likely_human_below"`
	LikelyAIAt       int `yaml:"likely_ai_at" mapstructure:"likely_ai_at"`
}

// FetchConfig configures HTTP fetching and retry behavior.
type FetchConfig struct {
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	PerHostRate      float64 `yaml:"per_host_rate" mapstructure:"per_host_rate"`
	PerHostBurst     int     `yaml:"per_host_burst" mapstructure:"per_host_burst"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ScanConfig configures batch scanning.
type ScanConfig struct {
	Concurrency             int `yaml:"concurrency" mapstructure:"concurrency"`
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetSecs        int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// DiscoveryConfig configures URL discovery for track.
type DiscoveryConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the stats API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.AddConfigPath("$HOME/.aidar")

	// Environment
	v.SetEnvPrefix("AIDAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "aidar.db")
	v.SetDefault("patterns.dir", "patterns")
	v.SetDefault("scoring.likely_human_below", 15)
	v.SetDefault("scoring.likely_ai_at", 30)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; aidar/1.0)")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.per_host_rate", 2.0)
	v.SetDefault("fetch.per_host_burst", 4)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.initial_backoff_ms", 1000)
	v.SetDefault("fetch.max_backoff_ms", 20000)
	v.SetDefault("scan.concurrency", 10)
	v.SetDefault("scan.breaker_failure_threshold", 5)
	v.SetDefault("scan.breaker_reset_secs", 30)
	v.SetDefault("discovery.timeout_secs", 30)
	v.SetDefault("server.port", 8080)
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

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Scoring.LikelyHumanBelow < 0 || c.Scoring.LikelyAIAt > 100 ||
		c.Scoring.LikelyHumanBelow > c.Scoring.LikelyAIAt {
		return eris.Errorf("config: label boundaries %d/%d out of order",
			c.Scoring.LikelyHumanBelow, c.Scoring.LikelyAIAt)
	}
	if c.Scan.Concurrency < 1 {
		return eris.Errorf("config: scan concurrency must be >= 1, got %d", c.Scan.Concurrency)
	}
	return nil
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
