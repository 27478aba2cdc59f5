package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 30*time.Second, cfg.Analysis.ExplainTimeout)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Model)
	assert.Equal(t, 1, cfg.LLM.MaxRetries)
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Knowledge.File)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pharmaguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
upload:
  max_bytes: 2048
llm:
  model: test-model
  timeout: 5s
logging:
  level: debug
  format: json
`), 0644))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(2048), cfg.Upload.MaxBytes)
	assert.Equal(t, "test-model", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep defaults")
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PHARMAGUARD_SERVER_PORT", "7000")
	t.Setenv("GROQ_API_KEY", "gsk_test")

	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "gsk_test", cfg.LLM.APIKey)
	assert.True(t, cfg.ExplanationsEnabled())
}

func TestLoad_EnvPrefixedKeyWins(t *testing.T) {
	t.Setenv("PHARMAGUARD_LLM_API_KEY", "primary")
	t.Setenv("GROQ_API_KEY", "fallback")

	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.LLM.APIKey)
}

func TestExplanationsEnabled(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.False(t, cfg.ExplanationsEnabled(), "no key")

	cfg.LLM.APIKey = "k"
	cfg.LLM.Enabled = false
	assert.False(t, cfg.ExplanationsEnabled())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"zero upload limit", func(c *Config) { c.Upload.MaxBytes = 0 }, "upload.max_bytes"},
		{"negative workers", func(c *Config) { c.Analysis.Workers = -1 }, "analysis.workers"},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }, "llm.max_retries"},
		{"temperature", func(c *Config) { c.LLM.Temperature = 3 }, "llm.temperature"},
		{"snapshot as file", func(c *Config) { c.Knowledge.File = "kb.duckdb" }, "knowledge.duckdb"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(newViper())
			require.NoError(t, err)
			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewLogger(LoggingConfig{Level: "debug", Format: format})
		require.NoError(t, err, format)
		assert.True(t, l.Core().Enabled(-1), "debug enabled for %s", format)
	}

	l, err := NewLogger(LoggingConfig{Level: "WARN", Format: "json"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(0), "info disabled at warn")

	_, err = NewLogger(LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
