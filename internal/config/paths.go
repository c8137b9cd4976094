package config

import (
	"os"
	"path/filepath"
)

// TaskboardPath returns the root directory for taskboard data.
// It uses $TASKBOARD_PATH if set, otherwise defaults to ~/.taskboard.
func TaskboardPath() string {
	if v := os.Getenv("TASKBOARD_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".taskboard")
	}
	return filepath.Join(home, ".taskboard")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(TaskboardPath(), "config.jsonc")
}

// DotenvPath returns the path to the .env file.
func DotenvPath() string {
	return filepath.Join(TaskboardPath(), ".env")
}

// HeartbeatPath returns the path of the running server's liveness file.
func HeartbeatPath() string {
	return filepath.Join(TaskboardPath(), "heartbeat.json")
}
