// Package config provides unified configuration loading for the FPL graph-RAG
// engine. Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Graph         GraphConfig         `yaml:"graph"`
	Cache         CacheConfig         `yaml:"cache"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Generative    GenerativeConfig    `yaml:"generative"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// GraphConfig holds Neo4j connection settings.
type GraphConfig struct {
	URL          string        `yaml:"url"` // HTTP endpoint, e.g. http://localhost:7474
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// EmbeddingConfig holds embedding model settings. Models maps a short model
// name (used as the per-node vector property suffix) to its API identifier.
type EmbeddingConfig struct {
	APIKey       string            `yaml:"api_key"`
	BaseURL      string            `yaml:"base_url"`
	Models       map[string]string `yaml:"models"`
	DefaultModel string            `yaml:"default_model"`
	Dimension    int               `yaml:"dimension"`
	BatchSize    int               `yaml:"batch_size"`
	Timeout      time.Duration     `yaml:"timeout"`
}

// GenerativeConfig holds generative model (classifier fallback, extractor
// fallback, answer generation) settings.
type GenerativeConfig struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// RetrievalConfig holds retrieval settings.
type RetrievalConfig struct {
	Mode         string        `yaml:"mode"` // baseline, semantic, or hybrid
	TopK         int           `yaml:"top_k"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	CacheResults bool          `yaml:"cache_results"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   60 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
		Graph: GraphConfig{
			URL:          "http://localhost:7474",
			Database:     "neo4j",
			Username:     "neo4j",
			QueryTimeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Embedding: EmbeddingConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Models: map[string]string{
				"minilm": "sentence-transformers/all-minilm-l6-v2",
				"mpnet":  "sentence-transformers/all-mpnet-base-v2",
			},
			DefaultModel: "mpnet",
			Dimension:    768,
			BatchSize:    100,
			Timeout:      30 * time.Second,
		},
		Generative: GenerativeConfig{
			BaseURL:    "https://openrouter.ai/api/v1",
			Model:      "meta-llama/llama-3-8b-instruct",
			Timeout:    30 * time.Second,
			MaxRetries: 1,
		},
		Retrieval: RetrievalConfig{
			Mode:         "hybrid",
			TopK:         5,
			QueryTimeout: 15 * time.Second,
			CacheResults: true,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "debug",
			LogFormat: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Retrieval.Mode {
	case "baseline", "semantic", "hybrid":
	default:
		return fmt.Errorf("invalid retrieval mode: %s", c.Retrieval.Mode)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > 50 {
		return fmt.Errorf("top_k must be between 1 and 50")
	}

	if _, ok := c.Embedding.Models[c.Embedding.DefaultModel]; !ok {
		return fmt.Errorf("default embedding model %q not in model registry", c.Embedding.DefaultModel)
	}

	if c.Generative.MaxRetries < 0 || c.Generative.MaxRetries > 3 {
		return fmt.Errorf("generative max_retries must be between 0 and 3")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("NEO4J_URL"); v != "" {
		cfg.Graph.URL = v
	}

	if v := os.Getenv("NEO4J_DATABASE"); v != "" {
		cfg.Graph.Database = v
	}

	if v := os.Getenv("NEO4J_USERNAME"); v != "" {
		cfg.Graph.Username = v
	}

	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		cfg.Graph.Password = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
		cfg.Generative.APIKey = v
	}

	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.DefaultModel = v
	}

	if v := os.Getenv("GENERATIVE_MODEL"); v != "" {
		cfg.Generative.Model = v
	}

	if v := os.Getenv("RETRIEVAL_MODE"); v != "" {
		cfg.Retrieval.Mode = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
