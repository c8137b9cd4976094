package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTaskboardPath_Default(t *testing.T) {
	t.Setenv("TASKBOARD_PATH", "")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	got := TaskboardPath()
	want := filepath.Join(home, ".taskboard")
	if got != want {
		t.Errorf("TaskboardPath() = %q, want %q", got, want)
	}
}

func TestTaskboardPath_EnvOverride(t *testing.T) {
	t.Setenv("TASKBOARD_PATH", "/tmp/custom-taskboard")

	if got := TaskboardPath(); got != "/tmp/custom-taskboard" {
		t.Errorf("TaskboardPath() = %q", got)
	}
}

func TestDerivedPaths(t *testing.T) {
	t.Setenv("TASKBOARD_PATH", "/tmp/test-taskboard")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"config", ConfigPath(), "/tmp/test-taskboard/config.jsonc"},
		{"dotenv", DotenvPath(), "/tmp/test-taskboard/.env"},
		{"heartbeat", HeartbeatPath(), "/tmp/test-taskboard/heartbeat.json"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
