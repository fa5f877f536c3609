// Package config holds environment-based configuration and the YAML
// platform registry.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/credlink/credlink/authflow"
	"github.com/credlink/credlink/store"
)

// Store backends.
const (
	BackendBolt  = "bolt"
	BackendRedis = "redis"
)

// Config holds all environment-based configuration for credlink.
type Config struct {
	// StoreBackend selects where records live: bolt or redis.
	StoreBackend string `env:"STORE_BACKEND" envDefault:"bolt"`

	// BoltPath is the bbolt database file, used when the backend is bolt.
	// Empty defaults to ~/.credlink/credlink.db.
	BoltPath string `env:"BOLT_PATH"`

	// Redis connection settings, used when the backend is redis.
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisUsername string `env:"REDIS_USERNAME"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// VaultKey encrypts credential bundles at rest. Required.
	VaultKey string `env:"VAULT_KEY"`

	// PlatformsFile points at the YAML platform registry.
	PlatformsFile string `env:"PLATFORMS_FILE" envDefault:"platforms.yaml"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.StoreBackend == BackendBolt && cfg.BoltPath == "" {
		path, err := defaultBoltPath()
		if err != nil {
			return nil, err
		}

		cfg.BoltPath = path
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.VaultKey == "" {
		return fmt.Errorf("VAULT_KEY is required")
	}

	switch c.StoreBackend {
	case BackendBolt, BackendRedis:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendBolt, BackendRedis, c.StoreBackend)
	}

	if c.StoreBackend == BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when the store backend is redis")
	}

	return nil
}

// defaultBoltPath returns ~/.credlink/credlink.db.
func defaultBoltPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".credlink", "credlink.db"), nil
}

// RedisConfig maps the Redis settings onto the store package's config.
func (c *Config) RedisConfig() store.RedisConfig {
	return store.RedisConfig{
		Addr:     c.RedisAddr,
		Username: c.RedisUsername,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// platformsFile is the YAML registry document shape.
type platformsFile struct {
	Platforms []authflow.ProviderConfig `yaml:"platforms"`
}

// LoadPlatforms reads the YAML platform registry at path. Platform
// names must be unique; endpoint validation happens when each entry is
// turned into a strategy.
func LoadPlatforms(path string) ([]authflow.ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading platform registry: %w", err)
	}

	var doc platformsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing platform registry: %w", err)
	}

	if len(doc.Platforms) == 0 {
		return nil, fmt.Errorf("platform registry %s declares no platforms", path)
	}

	seen := make(map[string]struct{}, len(doc.Platforms))
	for _, p := range doc.Platforms {
		if p.Name == "" {
			return nil, fmt.Errorf("platform registry %s: entry with empty name", path)
		}

		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("platform registry %s: duplicate platform %q", path, p.Name)
		}

		seen[p.Name] = struct{}{}
	}

	return doc.Platforms, nil
}
