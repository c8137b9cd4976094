package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.jsonc")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
	// This is a JSONC comment
	"server": {
		"host": "0.0.0.0",
		"port": 9999,
		"cors_origin": "https://board.example.com",
		"shutdown_timeout": "2s",
	},
	"store": {
		"driver": "mongo",
		"mongo": {
			"uri": "${{ .Env.TEST_MONGO_URI }}",
			"transactions": true,
			"timeout": "3s",
		},
	},
	"events": { "buffer_size": 16 },
}`)

	t.Setenv("TEST_MONGO_URI", "mongodb://db:27017")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.CORSOrigin != "https://board.example.com" {
		t.Errorf("unexpected cors origin %s", cfg.Server.CORSOrigin)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 2*time.Second {
		t.Errorf("expected shutdown 2s, got %v", cfg.Server.ShutdownTimeout.Duration())
	}
	if cfg.Store.Driver != DriverMongo {
		t.Errorf("expected mongo driver, got %s", cfg.Store.Driver)
	}
	if cfg.Store.Mongo.URI != "mongodb://db:27017" {
		t.Errorf("expected expanded uri, got %s", cfg.Store.Mongo.URI)
	}
	if !cfg.Store.Mongo.Transactions {
		t.Error("expected transactions enabled")
	}
	if cfg.Store.Mongo.Timeout.Duration() != 3*time.Second {
		t.Errorf("expected timeout 3s, got %v", cfg.Store.Mongo.Timeout.Duration())
	}
	if cfg.Store.Mongo.Collection != "tasks.usertasks" {
		t.Errorf("expected default collection, got %s", cfg.Store.Mongo.Collection)
	}
	if cfg.Events.BufferSize != 16 {
		t.Errorf("expected buffer 16, got %d", cfg.Events.BufferSize)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TASKBOARD_PATH", "/tmp/tb")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("CORS_ORIGIN", "")
	t.Setenv("MONGODB_PATH", "")

	cfg, err := Load(writeConfig(t, `{}`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected default host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected default port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.CORSOrigin != "http://localhost:3000" {
		t.Errorf("expected default cors origin, got %s", cfg.Server.CORSOrigin)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 5*time.Second {
		t.Errorf("expected default shutdown 5s, got %v", cfg.Server.ShutdownTimeout.Duration())
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %s", cfg.Store.Driver)
	}
	if cfg.Store.SQLite.Path != "/tmp/tb/taskboard.db" {
		t.Errorf("unexpected sqlite path %s", cfg.Store.SQLite.Path)
	}
	if cfg.Store.Mongo.Database != "taskboard" {
		t.Errorf("expected default database, got %s", cfg.Store.Mongo.Database)
	}
	if cfg.Events.BufferSize != 256 {
		t.Errorf("expected default buffer 256, got %d", cfg.Events.BufferSize)
	}
	if cfg.Events.Log || cfg.Events.LogDir != "/tmp/tb/events" {
		t.Errorf("unexpected event log defaults %+v", cfg.Events)
	}
}

func TestLoadEnvFallbacks(t *testing.T) {
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("CORS_ORIGIN", "https://app.example.com")
	t.Setenv("MONGODB_PATH", "mongodb://localhost:27017")

	cfg, err := Load(writeConfig(t, `{"server": {"host": "localhost"}}`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("expected SERVER_PORT fallback, got %d", cfg.Server.Port)
	}
	if cfg.Server.CORSOrigin != "https://app.example.com" {
		t.Errorf("expected CORS_ORIGIN fallback, got %s", cfg.Server.CORSOrigin)
	}
	if cfg.Store.Mongo.URI != "mongodb://localhost:27017" {
		t.Errorf("expected MONGODB_PATH fallback, got %s", cfg.Store.Mongo.URI)
	}
}

func TestLoadFileWins(t *testing.T) {
	t.Setenv("SERVER_PORT", "8081")

	cfg, err := Load(writeConfig(t, `{"server": {"port": 7000}}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("file value should win over env, got %d", cfg.Server.Port)
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load(writeConfig(t, `{"server": `)); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Load(writeConfig(t, `{"server": {"shutdown_timeout": "soon"}}`)); err == nil {
		t.Error("expected duration error")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.jsonc"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Server.Port == 0 || cfg.Store.Driver == "" {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	if _, err := LoadOrDefault(writeConfig(t, `not json`)); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestExpandEnvTemplates(t *testing.T) {
	t.Setenv("TB_A", "alpha")
	t.Setenv("TB_EMPTY", "")

	tests := []struct {
		in, want string
	}{
		{`"${{ .Env.TB_A }}"`, `"alpha"`},
		{`"${{.Env.TB_A}}-x"`, `"alpha-x"`},
		{`"${{ .Env.TB_EMPTY }}"`, `""`},
		{`"plain"`, `"plain"`},
	}
	for _, tt := range tests {
		if got := expandEnvTemplates(tt.in); got != tt.want {
			t.Errorf("expandEnvTemplates(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
