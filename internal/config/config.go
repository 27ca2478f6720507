// Package config loads Tarantula configuration from YAML
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full runtime configuration. Zero values are filled
// from Default before use.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Cache    CacheConfig    `yaml:"cache"`
	Resolve  ResolveConfig  `yaml:"resolve"`
	Render   RenderConfig   `yaml:"render"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// DatabaseConfig locates the backing store
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// CacheConfig carries the per-namespace TTLs in seconds
type CacheConfig struct {
	PathTTLSeconds       int `yaml:"path_ttl_seconds"`
	DetailTTLSeconds     int `yaml:"detail_ttl_seconds"`
	ProjectionTTLSeconds int `yaml:"projection_ttl_seconds"`
}

// PathTTL returns the path-prefix cache TTL
func (c CacheConfig) PathTTL() time.Duration {
	return time.Duration(c.PathTTLSeconds) * time.Second
}

// DetailTTL returns the node-detail cache TTL
func (c CacheConfig) DetailTTL() time.Duration {
	return time.Duration(c.DetailTTLSeconds) * time.Second
}

// ProjectionTTL returns the rendered-projection cache TTL
func (c CacheConfig) ProjectionTTL() time.Duration {
	return time.Duration(c.ProjectionTTLSeconds) * time.Second
}

// ResolveConfig controls path resolution
type ResolveConfig struct {
	// RootParentID is the sentinel parent id the walk starts from
	RootParentID int64 `yaml:"root_parent_id"`
	// Expansions substitutes a user-facing first segment with one or
	// more canonical segments
	Expansions map[string][]string `yaml:"expansions"`
}

// RenderConfig controls recursive rendering
type RenderConfig struct {
	MaxDepth     int    `yaml:"max_depth"`
	HiddenPrefix string `yaml:"hidden_prefix"`
}

// WorkerConfig sizes the store worker pool
type WorkerConfig struct {
	PoolSize int `yaml:"pool_size"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "tarantula.db"},
		Log:      LogConfig{Level: "info", Pretty: false},
		Cache: CacheConfig{
			PathTTLSeconds:       300,
			DetailTTLSeconds:     120,
			ProjectionTTLSeconds: 120,
		},
		Resolve: ResolveConfig{
			RootParentID: -1,
			Expansions:   map[string][]string{},
		},
		Render: RenderConfig{
			MaxDepth:     3,
			HiddenPrefix: "$",
		},
		Worker: WorkerConfig{PoolSize: 8},
	}
}

// Load reads a YAML config file over the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyFloors()
	return cfg, nil
}

// applyFloors backfills values that must stay positive
func (c *Config) applyFloors() {
	d := Default()
	if c.Cache.PathTTLSeconds <= 0 {
		c.Cache.PathTTLSeconds = d.Cache.PathTTLSeconds
	}
	if c.Cache.DetailTTLSeconds <= 0 {
		c.Cache.DetailTTLSeconds = d.Cache.DetailTTLSeconds
	}
	if c.Cache.ProjectionTTLSeconds <= 0 {
		c.Cache.ProjectionTTLSeconds = d.Cache.ProjectionTTLSeconds
	}
	if c.Render.MaxDepth <= 0 {
		c.Render.MaxDepth = d.Render.MaxDepth
	}
	if c.Render.HiddenPrefix == "" {
		c.Render.HiddenPrefix = d.Render.HiddenPrefix
	}
	if c.Worker.PoolSize <= 0 {
		c.Worker.PoolSize = d.Worker.PoolSize
	}
}
