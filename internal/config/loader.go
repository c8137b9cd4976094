package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/tailscale/hujson"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file (comments and trailing commas allowed),
// expands ${{ .Env.VAR }} templates, unmarshals it into Config and applies
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand before standardizing, templates live inside strings.
	expanded := expandEnvTemplates(string(data))

	std, err := hujson.Standardize([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadOrDefault loads path, falling back to a defaulted Config when the file
// does not exist. Any other error is returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		cfg = &Config{}
		ApplyDefaults(cfg)
		return cfg, nil
	}
	return nil, err
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// ApplyDefaults fills in zero-value fields. SERVER_PORT, CORS_ORIGIN and
// MONGODB_PATH are honoured when the file leaves the field empty.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9000
		if v, err := strconv.Atoi(os.Getenv("SERVER_PORT")); err == nil && v > 0 {
			cfg.Server.Port = v
		}
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "http://localhost:3000"
		if v := os.Getenv("CORS_ORIGIN"); v != "" {
			cfg.Server.CORSOrigin = v
		}
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(5 * time.Second)
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = DriverSQLite
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = filepath.Join(TaskboardPath(), "taskboard.db")
	}
	if cfg.Store.Mongo.URI == "" {
		cfg.Store.Mongo.URI = os.Getenv("MONGODB_PATH")
	}
	if cfg.Store.Mongo.Database == "" {
		cfg.Store.Mongo.Database = "taskboard"
	}
	if cfg.Store.Mongo.Collection == "" {
		cfg.Store.Mongo.Collection = "tasks.usertasks"
	}
	if cfg.Store.Mongo.Timeout == 0 {
		cfg.Store.Mongo.Timeout = Duration(10 * time.Second)
	}

	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 256
	}
	if cfg.Events.LogDir == "" {
		cfg.Events.LogDir = filepath.Join(TaskboardPath(), "events")
	}
}
