package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the search tool.
type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Search  SearchConfig  `yaml:"search"`
	Cache   CacheConfig   `yaml:"cache"`
	Serve   ServeConfig   `yaml:"serve"`
	Logging LoggingConfig `yaml:"logging"`
}

// IndexConfig holds indexing configuration.
type IndexConfig struct {
	Includes    []string `yaml:"includes"`
	Excludes    []string `yaml:"excludes"`
	Stemming    bool     `yaml:"stemming"`
	Stopwords   bool     `yaml:"stopwords"`
	MinTokenLen int      `yaml:"min_token_len"`
	Workers     int      `yaml:"workers"` // 0 = one per available CPU
}

// SearchConfig holds query configuration.
type SearchConfig struct {
	TopN     int     `yaml:"top_n"`
	MinScore float64 `yaml:"min_score"` // Filter results below this score (0 = disabled)
}

// CacheConfig holds query result cache configuration.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	Size    int           `yaml:"size"`
	TTL     time.Duration `yaml:"ttl"`
}

// ServeConfig holds HTTP server configuration.
type ServeConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Includes:    []string{"**/*"},
			Excludes:    []string{"**/.git/**", "**/.vsearch/**", "**/node_modules/**", "**/vendor/**"},
			Stemming:    true,
			Stopwords:   true,
			MinTokenLen: 2,
			Workers:     0,
		},
		Search: SearchConfig{
			TopN: 10,
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    256,
			TTL:     5 * time.Minute,
		},
		Serve: ServeConfig{
			Host:     "localhost",
			Port:     8080,
			Watch:    false,
			Debounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration for values the engine cannot work with.
func (c *Config) Validate() error {
	if c.Search.TopN <= 0 {
		return fmt.Errorf("search.top_n must be positive, got %d", c.Search.TopN)
	}
	if c.Search.MinScore < 0 {
		return fmt.Errorf("search.min_score must not be negative, got %f", c.Search.MinScore)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("index.workers must not be negative, got %d", c.Index.Workers)
	}
	if c.Index.MinTokenLen < 1 {
		return fmt.Errorf("index.min_token_len must be at least 1, got %d", c.Index.MinTokenLen)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size)
	}

	// same spellings the logger accepts, stored in canonical form
	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "info":
		c.Logging.Level = "info"
	case "debug":
		c.Logging.Level = "debug"
	case "warn", "warning":
		c.Logging.Level = "warn"
	case "error":
		c.Logging.Level = "error"
	default:
		return fmt.Errorf("unknown logging.level %q", c.Logging.Level)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
		c.Logging.Format = "json"
	default:
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for vsearch.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "vsearch.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".vsearch", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
