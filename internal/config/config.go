// Package config loads pharmaguard settings from file, environment and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable names, e.g. PHARMAGUARD_SERVER_PORT.
const EnvPrefix = "PHARMAGUARD"

// Config is the complete configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	StaticDir       string        `mapstructure:"static_dir"` // optional frontend build
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// UploadConfig bounds accepted variant files.
type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// AnalysisConfig tunes the orchestrator.
type AnalysisConfig struct {
	Workers        int           `mapstructure:"workers"`
	ExplainTimeout time.Duration `mapstructure:"explain_timeout"`
}

// LLMConfig configures the explanation provider.
type LLMConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RateLimit   float64       `mapstructure:"rate_limit"`
	CacheSize   int           `mapstructure:"cache_size"`
}

// KnowledgeConfig selects the knowledge base source. Both empty means the
// embedded default.
type KnowledgeConfig struct {
	File   string `mapstructure:"file"`
	DuckDB string `mapstructure:"duckdb"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.static_dir", "")

	v.SetDefault("upload.max_bytes", 10<<20)

	v.SetDefault("analysis.workers", 0)
	v.SetDefault("analysis.explain_timeout", "30s")

	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", "20s")
	v.SetDefault("llm.max_retries", 1)
	v.SetDefault("llm.rate_limit", 2.0)
	v.SetDefault("llm.cache_size", 256)

	v.SetDefault("knowledge.file", "")
	v.SetDefault("knowledge.duckdb", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// BindEnv enables PHARMAGUARD_* environment overrides. GROQ_API_KEY is
// also honored for the LLM key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GROQ_API_KEY")
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers must not be negative, got %d", c.Analysis.Workers)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", c.LLM.MaxRetries)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature out of range: %v", c.LLM.Temperature)
	}
	if c.Knowledge.File != "" && c.Knowledge.DuckDB == "" && strings.HasSuffix(c.Knowledge.File, ".duckdb") {
		return fmt.Errorf("knowledge.file %q looks like a snapshot; set knowledge.duckdb instead", c.Knowledge.File)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	return nil
}

// ExplanationsEnabled reports whether an explanation provider should be built.
func (c *Config) ExplanationsEnabled() bool {
	return c.LLM.Enabled && c.LLM.APIKey != ""
}
