// Package config loads the YAML configuration file. Environment variables
// referenced as ${VAR} or $VAR in the file are expanded before parsing, so
// credentials can stay out of the file itself.
package config

import (
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"schemap/internal/cache"
	"schemap/internal/database"
	"schemap/internal/errs"
	"schemap/internal/logger"
)

// Duration is a time.Duration that unmarshals from YAML strings like "10m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "invalid duration: "+s, err)
	}
	*d = Duration(dur)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Connection is one configured database to introspect.
type Connection struct {
	Name   string `yaml:"name"`
	Driver string `yaml:"driver"` // postgres or mysql
	DSN    string `yaml:"dsn"`

	// Schema is the namespace to introspect. Postgres only; defaults to
	// "public". MySQL scopes to the database named in the DSN.
	Schema string `yaml:"schema"`

	// MaxRows caps data-query result sets for this connection.
	MaxRows int `yaml:"max_rows"`
}

// DatabaseConfig builds the pool settings for the connection.
func (c *Connection) DatabaseConfig() *database.Config {
	return database.DefaultConfig(database.Driver(c.Driver), c.DSN)
}

// Server holds the HTTP listener settings.
type Server struct {
	Addr         string   `yaml:"addr"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// Cache holds snapshot cache settings. ObjectStore is optional; when absent
// snapshots live only in process memory.
type Cache struct {
	TTL         Duration            `yaml:"ttl"`
	ObjectStore *cache.ObjectConfig `yaml:"object_store"`
}

// Config is the root of the configuration file.
type Config struct {
	Server      Server        `yaml:"server"`
	Cache       Cache         `yaml:"cache"`
	Logger      logger.Config `yaml:"logger"`
	Connections []Connection  `yaml:"connections"`
}

// Load reads, expands and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to read config file", err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "failed to parse config", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Connection returns the named connection, or nil when absent.
func (c *Config) Connection(name string) *Connection {
	for i := range c.Connections {
		if c.Connections[i].Name == name {
			return &c.Connections[i]
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = Duration(5 * time.Minute)
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}

	for i := range c.Connections {
		conn := &c.Connections[i]
		if conn.Schema == "" && conn.Driver == string(database.DriverPostgres) {
			conn.Schema = "public"
		}
	}
}

func (c *Config) validate() error {
	if len(c.Connections) == 0 {
		return errs.New(errs.ErrKindInvalidInput, "config declares no connections")
	}

	seen := make(map[string]bool, len(c.Connections))
	for i := range c.Connections {
		conn := &c.Connections[i]
		if conn.Name == "" {
			return errs.New(errs.ErrKindInvalidInput, "connection is missing a name")
		}
		if seen[conn.Name] {
			return errs.New(errs.ErrKindInvalidInput, "duplicate connection name: "+conn.Name)
		}
		seen[conn.Name] = true

		switch database.Driver(conn.Driver) {
		case database.DriverPostgres, database.DriverMySQL:
		default:
			return errs.New(errs.ErrKindInvalidInput,
				"connection "+conn.Name+" has unsupported driver: "+conn.Driver)
		}
		if conn.DSN == "" {
			return errs.New(errs.ErrKindInvalidInput, "connection "+conn.Name+" is missing a dsn")
		}
	}

	if obj := c.Cache.ObjectStore; obj != nil {
		if obj.Endpoint == "" || obj.Bucket == "" {
			return errs.New(errs.ErrKindInvalidInput, "object_store requires endpoint and bucket")
		}
	}
	return nil
}
