// Package config reads blocknotes configuration from a YAML file with
// BLOCKDOC_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidValue is returned when a config value is invalid.
	ErrInvalidValue = errors.New("invalid config value")
)

// Defaults applied when not configured.
const (
	DefaultAddr            = ":8080"
	DefaultDriver          = "sqlite"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultOrphanSweep     = "@every 6h"
)

// Server holds HTTP listener options.
type Server struct {
	Addr            string        `yaml:"addr,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// Storage selects the document store. Driver is sqlite, postgres, mysql or
// mongo. DSN, when set, is used as is; otherwise the remaining fields are
// assembled into one.
type Storage struct {
	Driver   string `yaml:"driver,omitempty"`
	DSN      string `yaml:"dsn,omitempty"`
	Path     string `yaml:"path,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	SSLMode  string `yaml:"ssl_mode,omitempty"`
}

// Log configures the root logger. Format is console or json.
type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Token maps a bcrypt hash of a bearer token to the owner it identifies.
type Token struct {
	Owner string `yaml:"owner"`
	Hash  string `yaml:"hash"`
}

type Auth struct {
	Tokens []Token `yaml:"tokens,omitempty"`
}

// Assistant configures the generative assistant. It is disabled while
// APIKey is empty.
type Assistant struct {
	Endpoint string        `yaml:"endpoint,omitempty"`
	APIKey   string        `yaml:"api_key,omitempty"`
	Model    string        `yaml:"model,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// Maintenance schedules background jobs. An empty schedule disables the job.
type Maintenance struct {
	OrphanSweep *string `yaml:"orphan_sweep,omitempty"`
}

// MCP configures the stdio tool server. Owner is the identity its tools act as.
type MCP struct {
	Owner string `yaml:"owner,omitempty"`
}

// Config contains configuration for blocknotes.
type Config struct {
	Server      Server      `yaml:"server,omitempty"`
	Storage     Storage     `yaml:"storage,omitempty"`
	DataDir     string      `yaml:"data_dir,omitempty"`
	Log         Log         `yaml:"log,omitempty"`
	Auth        Auth        `yaml:"auth,omitempty"`
	Assistant   Assistant   `yaml:"assistant,omitempty"`
	Maintenance Maintenance `yaml:"maintenance,omitempty"`
	MCP         MCP         `yaml:"mcp,omitempty"`

	// path is the file this config was loaded from
	path string
	// envErr is the first malformed environment override
	envErr error
}

// DefaultDataDir returns ~/.local/share/blocknotes.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "data")
	}
	return filepath.Join(home, ".local", "share", "blocknotes")
}

// Load reads path, applies defaults and environment overrides, and
// validates the result. An empty path or a missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{path: path}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("malformed config file %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the file this config was loaded from.
func (c *Config) Path() string { return c.path }

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultDriver
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.Storage.Driver == "sqlite" && c.Storage.DSN == "" && c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "blocknotes.db")
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Maintenance.OrphanSweep == nil {
		spec := DefaultOrphanSweep
		c.Maintenance.OrphanSweep = &spec
	}
}

// env maps BLOCKDOC_* variables onto config fields.
var env = []struct {
	name string
	set  func(c *Config, v string) error
}{
	{"BLOCKDOC_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"BLOCKDOC_DATA_DIR", func(c *Config, v string) error { c.DataDir = v; return nil }},
	{"BLOCKDOC_STORAGE_DRIVER", func(c *Config, v string) error { c.Storage.Driver = v; return nil }},
	{"BLOCKDOC_STORAGE_DSN", func(c *Config, v string) error { c.Storage.DSN = v; return nil }},
	{"BLOCKDOC_STORAGE_PATH", func(c *Config, v string) error { c.Storage.Path = v; return nil }},
	{"BLOCKDOC_STORAGE_HOST", func(c *Config, v string) error { c.Storage.Host = v; return nil }},
	{"BLOCKDOC_STORAGE_PORT", func(c *Config, v string) error {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: BLOCKDOC_STORAGE_PORT must be a number, got %q", ErrInvalidValue, v)
		}
		c.Storage.Port = port
		return nil
	}},
	{"BLOCKDOC_STORAGE_DATABASE", func(c *Config, v string) error { c.Storage.Database = v; return nil }},
	{"BLOCKDOC_STORAGE_USERNAME", func(c *Config, v string) error { c.Storage.Username = v; return nil }},
	{"BLOCKDOC_STORAGE_PASSWORD", func(c *Config, v string) error { c.Storage.Password = v; return nil }},
	{"BLOCKDOC_LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"BLOCKDOC_LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = v; return nil }},
	{"BLOCKDOC_ASSISTANT_ENDPOINT", func(c *Config, v string) error { c.Assistant.Endpoint = v; return nil }},
	{"BLOCKDOC_ASSISTANT_API_KEY", func(c *Config, v string) error { c.Assistant.APIKey = v; return nil }},
	{"BLOCKDOC_ASSISTANT_MODEL", func(c *Config, v string) error { c.Assistant.Model = v; return nil }},
	{"BLOCKDOC_ORPHAN_SWEEP", func(c *Config, v string) error { c.Maintenance.OrphanSweep = &v; return nil }},
	{"BLOCKDOC_MCP_OWNER", func(c *Config, v string) error { c.MCP.Owner = v; return nil }},
}

// applyEnv keeps the first malformed override for Validate to report.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for _, e := range env {
		v, ok := lookup(e.name)
		if !ok {
			continue
		}
		if err := e.set(c, v); err != nil && c.envErr == nil {
			c.envErr = err
		}
	}
}

// Validate checks that all configured values are usable.
func (c *Config) Validate() error {
	if c.envErr != nil {
		return c.envErr
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres", "mysql", "mongo":
	default:
		return fmt.Errorf("%w: storage.driver must be sqlite, postgres, mysql or mongo, got %q",
			ErrInvalidValue, c.Storage.Driver)
	}
	if c.Storage.Port < 0 || c.Storage.Port > 65535 {
		return fmt.Errorf("%w: storage.port must be between 0 and 65535, got %d", ErrInvalidValue, c.Storage.Port)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log.format must be console or json, got %q", ErrInvalidValue, c.Log.Format)
	}
	for i, t := range c.Auth.Tokens {
		if strings.TrimSpace(t.Owner) == "" {
			return fmt.Errorf("%w: auth.tokens[%d] has no owner", ErrInvalidValue, i)
		}
		if _, err := bcrypt.Cost([]byte(t.Hash)); err != nil {
			return fmt.Errorf("%w: auth.tokens[%d] hash is not a bcrypt hash: %v", ErrInvalidValue, i, err)
		}
	}
	if c.Assistant.Timeout < 0 {
		return fmt.Errorf("%w: assistant.timeout must not be negative", ErrInvalidValue)
	}
	return nil
}

// OrphanSweepSpec returns the cron spec of the orphan sweep, or "" when it
// is disabled.
func (c *Config) OrphanSweepSpec() string {
	if c.Maintenance.OrphanSweep == nil {
		return DefaultOrphanSweep
	}
	return *c.Maintenance.OrphanSweep
}

// UploadDir is where uploaded images are stored.
func (c *Config) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// HashToken returns the bcrypt hash to put in auth.tokens for a bearer token.
func HashToken(token string) (string, error) {
	if len(token) < 16 {
		return "", fmt.Errorf("%w: token must be at least 16 characters", ErrInvalidValue)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}
