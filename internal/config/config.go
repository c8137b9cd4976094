package config

import "time"

// Config is the root configuration for the taskboard server.
type Config struct {
	Server ServerConfig `json:"server"`
	Store  StoreConfig  `json:"store"`
	Events EventsConfig `json:"events"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	CORSOrigin      string   `json:"cors_origin"`
	ShutdownTimeout Duration `json:"shutdown_timeout,omitempty"`
}

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver string       `json:"driver"` // "sqlite" (default) or "mongo"
	SQLite SQLiteConfig `json:"sqlite"`
	Mongo  MongoConfig  `json:"mongo"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path string `json:"path"` // database file, or ":memory:"
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI          string   `json:"uri"` // direct URI or ${{ .Env.VAR }} template
	Database     string   `json:"database"`
	Collection   string   `json:"collection"`
	Transactions bool     `json:"transactions"` // needs a replica set
	Timeout      Duration `json:"timeout,omitempty"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
	// Log appends every event to per-project JSONL files under LogDir.
	Log    bool   `json:"log"`
	LogDir string `json:"log_dir"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
