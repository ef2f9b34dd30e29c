package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	internal "github.com/ZanzyTHEbar/questforge/qforge"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	QuestForge QuestForgeConfig `mapstructure:"questforge"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Store      StoreConfig      `mapstructure:"store"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

// QuestForgeConfig stores application-level settings.
type QuestForgeConfig struct {
	DataDir  string `mapstructure:"data_dir"`  // Directory for embedded database files
	LogLevel string `mapstructure:"log_level"` // trace, debug, info, warn, error
}

// ProviderConfig stores generative provider settings.
type ProviderConfig struct {
	Backend     string        `mapstructure:"backend"`      // "gemini" or "openai"
	Model       string        `mapstructure:"model"`        // Model identifier
	APIKey      string        `mapstructure:"api_key"`      // API key; usually supplied via environment
	BaseURL     string        `mapstructure:"base_url"`     // OpenAI-compatible endpoint base URL
	CallTimeout time.Duration `mapstructure:"call_timeout"` // Deadline per provider call
	MaxAttempts int           `mapstructure:"max_attempts"` // Transport attempts per call
	BackoffBase time.Duration `mapstructure:"backoff_base"` // Base delay for retry backoff
	GateWidth   int           `mapstructure:"gate_width"`   // Concurrent provider calls admitted globally
}

// StoreConfig stores session persistence settings.
type StoreConfig struct {
	Driver        string        `mapstructure:"driver"`         // "memory", "redis", "libsql", "supabase"
	DSN           string        `mapstructure:"dsn"`            // libsql database path
	RedisAddr     string        `mapstructure:"redis_addr"`     // host:port
	RedisPassword string        `mapstructure:"redis_password"` //
	RedisDB       int           `mapstructure:"redis_db"`       //
	RedisTTL      time.Duration `mapstructure:"redis_ttl"`      // Idle session expiry in redis
	SupabaseURL   string        `mapstructure:"supabase_url"`   //
	SupabaseKey   string        `mapstructure:"supabase_key"`   //
	CacheEnabled  bool          `mapstructure:"cache_enabled"`  // Read-through session cache
	CacheCapacity int           `mapstructure:"cache_capacity"` // LRU cache capacity
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`      // Cache entry TTL
}

// PipelineConfig stores generation pipeline settings. These are the knobs
// picked up on config reload while the process runs.
type PipelineConfig struct {
	StageAttempts      int `mapstructure:"stage_attempts"`      // Generation attempts per stage
	SiblingParallelism int `mapstructure:"sibling_parallelism"` // Concurrent stages inside a group
	HistoryMaxTokens   int `mapstructure:"history_max_tokens"`  // Token budget for turn context
	HistoryMaxTurns    int `mapstructure:"history_max_turns"`   // Max turns packed into turn context
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("questforge.data_dir", internal.DefaultDataDir)
	viper.SetDefault("questforge.log_level", "info")

	// Provider defaults
	viper.SetDefault("provider.backend", internal.DefaultProviderBackend)
	viper.SetDefault("provider.model", internal.DefaultProviderModel)
	viper.SetDefault("provider.api_key", "")
	viper.SetDefault("provider.base_url", "https://api.openai.com/v1")
	viper.SetDefault("provider.call_timeout", "60s")
	viper.SetDefault("provider.max_attempts", 3)
	viper.SetDefault("provider.backoff_base", "500ms")
	viper.SetDefault("provider.gate_width", 4)

	// Store defaults
	viper.SetDefault("store.driver", internal.DefaultStoreDriver)
	viper.SetDefault("store.dsn", internal.DefaultStoreDSN)
	viper.SetDefault("store.redis_addr", "localhost:6379")
	viper.SetDefault("store.redis_password", "")
	viper.SetDefault("store.redis_db", 0)
	viper.SetDefault("store.redis_ttl", "24h")
	viper.SetDefault("store.supabase_url", "")
	viper.SetDefault("store.supabase_key", "")
	viper.SetDefault("store.cache_enabled", true)
	viper.SetDefault("store.cache_capacity", 256)
	viper.SetDefault("store.cache_ttl", "5m")

	// Pipeline defaults
	viper.SetDefault("pipeline.stage_attempts", 3)
	viper.SetDefault("pipeline.sibling_parallelism", 3)
	viper.SetDefault("pipeline.history_max_tokens", 2048)
	viper.SetDefault("pipeline.history_max_turns", 40)

	viper.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. provider.api_key becomes PROVIDER_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used. Not an error
			// worth halting on.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}

// Watch re-reads the config file whenever it changes on disk and hands the
// fresh config to onChange. Call once after LoadConfig; reload failures are
// logged and the previous config stays in effect.
func Watch(logger zerolog.Logger, onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		var fresh Config
		if err := viper.Unmarshal(&fresh); err != nil {
			logger.Warn().Err(err).Str("file", e.Name).Msg("config reload failed, keeping previous settings")
			return
		}
		AppConfig = fresh
		logger.Info().Str("file", e.Name).Msg("config reloaded")
		onChange(&fresh)
	})
	viper.WatchConfig()
}
