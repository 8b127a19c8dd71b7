// Package config loads application configuration from file and environment.
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
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Auction   AuctionConfig   `yaml:"auction" mapstructure:"auction"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Sched     SchedConfig     `yaml:"sched" mapstructure:"sched"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres, memory
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AuctionConfig tunes auction behavior.
type AuctionConfig struct {
	DefaultDurationHours int `yaml:"default_duration_hours" mapstructure:"default_duration_hours"`
	EventHistorySize     int `yaml:"event_history_size" mapstructure:"event_history_size"`
}

// SyncConfig configures the government feed import.
type SyncConfig struct {
	PrimaryURL     string  `yaml:"primary_url" mapstructure:"primary_url"`
	SecondaryURL   string  `yaml:"secondary_url" mapstructure:"secondary_url"`
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	AliasFile      string  `yaml:"alias_file" mapstructure:"alias_file"`
	QuintalDivisor float64 `yaml:"quintal_divisor" mapstructure:"quintal_divisor"`
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// RedisConfig configures the external market index cache. An empty address
// keeps the index in-process.
type RedisConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// AnthropicConfig holds vision analysis settings. An empty key selects the
// deterministic mock analyzer.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// SchedConfig holds the background task cron specs.
type SchedConfig struct {
	SyncSpec    string `yaml:"sync_spec" mapstructure:"sync_spec"`
	RefreshSpec string `yaml:"refresh_spec" mapstructure:"refresh_spec"`
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
	v.SetEnvPrefix("FISHBID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fishbid.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("auction.default_duration_hours", 24)
	v.SetDefault("auction.event_history_size", 100)
	v.SetDefault("sync.primary_url", "https://api.data.gov.in/resource/9ef84268-d588-465a-a308-a864a43d0070")
	v.SetDefault("sync.secondary_url", "https://api.data.gov.in/resource/35985678-0d79-46b4-9ed6-6f13308a1d24")
	v.SetDefault("sync.quintal_divisor", 100.0)
	v.SetDefault("sync.rate_per_second", 5.0)
	v.SetDefault("sched.sync_spec", "0 2 * * *")
	v.SetDefault("sched.refresh_spec", "0 * * * *")
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
