package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "hybrid", cfg.Retrieval.Mode)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Contains(t, cfg.Embedding.Models, cfg.Embedding.DefaultModel)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  host: 127.0.0.1
  port: 9001
graph:
  url: http://neo4j.internal:7474
  database: fpl
retrieval:
  mode: baseline
  top_k: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "http://neo4j.internal:7474", cfg.Graph.URL)
	assert.Equal(t, "fpl", cfg.Graph.Database)
	assert.Equal(t, "baseline", cfg.Retrieval.Mode)
	assert.Equal(t, 3, cfg.Retrieval.TopK)

	// Untouched sections keep their defaults.
	assert.Equal(t, "memory", cfg.Cache.Driver)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NEO4J_URL", "http://graph:7474")
	t.Setenv("NEO4J_PASSWORD", "hunter2")
	t.Setenv("RETRIEVAL_MODE", "semantic")
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://graph:7474", cfg.Graph.URL)
	assert.Equal(t, "hunter2", cfg.Graph.Password)
	assert.Equal(t, "semantic", cfg.Retrieval.Mode)
	assert.Equal(t, "or-key", cfg.Embedding.APIKey)
	assert.Equal(t, "or-key", cfg.Generative.APIKey)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
}

func TestRedisURLEnvSwitchesDriver(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad mode", func(c *Config) { c.Retrieval.Mode = "exhaustive" }},
		{"bad cache driver", func(c *Config) { c.Cache.Driver = "memcached" }},
		{"top_k too small", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"top_k too large", func(c *Config) { c.Retrieval.TopK = 51 }},
		{"unknown default model", func(c *Config) { c.Embedding.DefaultModel = "bert" }},
		{"retries out of range", func(c *Config) { c.Generative.MaxRetries = 9 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
