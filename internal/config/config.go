package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	Enrich     EnrichConfig     `yaml:"enrich" mapstructure:"enrich"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// DiscoveryConfig configures lead discovery runs.
type DiscoveryConfig struct {
	DefaultCap   int    `yaml:"default_cap" mapstructure:"default_cap"`
	MaxCap       int    `yaml:"max_cap" mapstructure:"max_cap"`
	DelaySecs    int    `yaml:"delay_secs" mapstructure:"delay_secs"`
	SegmentsPath string `yaml:"segments_path" mapstructure:"segments_path"`
}

// Delay returns the pause between query variations.
func (c DiscoveryConfig) Delay() time.Duration {
	return time.Duration(c.DelaySecs) * time.Second
}

// EnrichConfig configures the background enrichment fan-out.
type EnrichConfig struct {
	MaxConcurrent int64 `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	BulkToken   string   `yaml:"bulk_token" mapstructure:"bulk_token"`
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
	v.SetEnvPrefix("LEADFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secret-bearing keys default to empty so the env
	// replacer can still bind them during Unmarshal.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("server.bulk_token", "")
	v.SetDefault("discovery.segments_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("discovery.default_cap", 20)
	v.SetDefault("discovery.max_cap", 50)
	v.SetDefault("discovery.delay_secs", 2)
	v.SetDefault("enrich.max_concurrent", 8)

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

// Validate checks that the configuration is complete for the given
// run mode ("serve", "discover", "bulk" or "migrate").
func (c *Config) Validate(mode string) error {
	var problems []string
	need := func(val, name string) {
		if val == "" {
			problems = append(problems, name+" is required")
		}
	}

	need(c.Store.DatabaseURL, "store.database_url")

	switch mode {
	case "migrate":
		// Store only.
	case "discover":
		need(c.Perplexity.Key, "perplexity.key")
		need(c.Anthropic.Key, "anthropic.key")
	case "bulk":
		need(c.Perplexity.Key, "perplexity.key")
		need(c.Anthropic.Key, "anthropic.key")
	case "serve":
		need(c.Perplexity.Key, "perplexity.key")
		need(c.Anthropic.Key, "anthropic.key")
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Discovery.MaxCap < 1 || c.Discovery.MaxCap > 50 {
			problems = append(problems, "discovery.max_cap must be between 1 and 50")
		}
		if c.Discovery.DefaultCap < 1 || c.Discovery.DefaultCap > c.Discovery.MaxCap {
			problems = append(problems, "discovery.default_cap must be between 1 and discovery.max_cap")
		}
		if c.Enrich.MaxConcurrent < 1 || c.Enrich.MaxConcurrent > 64 {
			problems = append(problems, "enrich.max_concurrent must be between 1 and 64")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
