// Package config layers YAML configuration under the process environment.
// A config file only fills in env vars that are not already set, so an
// operator's environment always wins and env-only deployments keep working
// with no file at all.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DSLA_CONFIG environment variable
//  3. ~/.dsla/config.yaml
//  4. ./dsla.yaml
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config mirrors the YAML file layout. Each field maps onto one env var.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Memory    MemoryConfig    `yaml:"memory"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Backend selects the embedder: local, ollama, openai, azure.
	Backend string `yaml:"backend"`
	Model   string `yaml:"model"`
	// Dimensions overrides the backend's default vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is better supplied via EMBEDDING_API_KEY than a file on disk.
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	// Path is the persistence base path; the engine derives <path>.index
	// and <path>.docs.json from it.
	Path string `yaml:"path"`
	// Backend selects the index implementation: exact, linear.
	Backend string `yaml:"backend"`
}

// MemoryConfig holds structured memory settings.
type MemoryConfig struct {
	DBPath string `yaml:"db_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// APIKey is better supplied via DSLA_API_KEY than a file on disk.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envValues returns the config flattened to (env key, value) pairs in a
// stable order. Empty values are included and skipped by the caller.
func (c *Config) envValues() [][2]string {
	return [][2]string{
		{"EMBEDDING_BACKEND", c.Embedding.Backend},
		{"EMBEDDING_MODEL", c.Embedding.Model},
		{"EMBEDDING_DIMENSIONS", intStr(c.Embedding.Dimensions)},
		{"EMBEDDING_API_KEY", c.Embedding.APIKey},
		{"EMBEDDING_ENDPOINT", c.Embedding.Endpoint},
		{"DSLA_INDEX_PATH", c.Index.Path},
		{"DSLA_INDEX_BACKEND", c.Index.Backend},
		{"DSLA_MEMORY_DB", c.Memory.DBPath},
		{"DSLA_HOST", c.Server.Host},
		{"DSLA_PORT", intStr(c.Server.Port)},
		{"DSLA_API_KEY", c.Server.APIKey},
		{"LOG_LEVEL", c.Logging.Level},
		{"LOG_FORMAT", c.Logging.Format},
	}
}

// Load resolves and parses the YAML config file, then exports every
// non-empty value into the environment unless the env var is already set.
// It returns the path actually loaded, or "" when no file was found, which
// is not an error.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolvePath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: parse %s: %w", path, err)
	}

	applied := 0
	for _, kv := range cfg.envValues() {
		key, val := kv[0], kv[1]
		if val == "" || os.Getenv(key) != "" {
			continue
		}
		os.Setenv(key, val)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)
	return path, nil
}

// resolvePath picks the config file to load. An explicit path that does not
// exist resolves to "" rather than an error so a templated --config flag
// pointing at a missing file degrades to env-only operation.
func resolvePath(explicit string) string {
	candidates := make([]string, 0, 4)
	if explicit != "" {
		candidates = append(candidates, explicit)
	} else {
		if p := os.Getenv("DSLA_CONFIG"); p != "" {
			candidates = append(candidates, p)
		}
		if home, err := os.UserHomeDir(); err == nil {
			candidates = append(candidates, filepath.Join(home, ".dsla", "config.yaml"))
		}
		candidates = append(candidates, "dsla.yaml")
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// intStr renders an int for the environment, with zero meaning unset.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}
