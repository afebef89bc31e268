package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	tserrors "github.com/Aman-CERP/textsearch/internal/errors"
	"github.com/Aman-CERP/textsearch/internal/logging"
)

// Config is the complete textsearch tool configuration. It covers the CLI
// and MCP host only; index behavior is fixed by the index mapping.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" toml:"logging" json:"logging"`
	Search    SearchConfig    `yaml:"search" toml:"search" json:"search"`
	Host      HostConfig      `yaml:"host" toml:"host" json:"host"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry" json:"telemetry"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level     string `yaml:"level" toml:"level" json:"level"`
	FilePath  string `yaml:"file_path" toml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" toml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" toml:"max_files" json:"max_files"`
	Stderr    bool   `yaml:"stderr" toml:"stderr" json:"stderr"`
}

// SearchConfig configures read operations issued by the tools.
type SearchConfig struct {
	// Limit is the number of hits search and find return (default: 10).
	Limit int `yaml:"limit" toml:"limit" json:"limit"`
	// QueryCacheSize is the per-session parsed query cache (0 disables).
	QueryCacheSize int `yaml:"query_cache_size" toml:"query_cache_size" json:"query_cache_size"`
}

// HostConfig configures the session registry of the CLI shell and the
// MCP server.
type HostConfig struct {
	// MaxOpenSessions bounds how many indexes stay open at once. The least
	// recently used session is closed when the bound is exceeded.
	MaxOpenSessions int `yaml:"max_open_sessions" toml:"max_open_sessions" json:"max_open_sessions"`
}

// TelemetryConfig configures the query log.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" json:"enabled"`
	Path    string `yaml:"path" toml:"path" json:"path"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			FilePath:  logging.DefaultLogPath(),
			MaxSizeMB: 10,
			MaxFiles:  5,
			Stderr:    false,
		},
		Search: SearchConfig{
			Limit:          10,
			QueryCacheSize: 256,
		},
		Host: HostConfig{
			MaxOpenSessions: 8,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
			Path:    defaultTelemetryPath(),
		},
	}
}

// LoggingSettings converts the logging section for internal/logging.
func (c *Config) LoggingSettings() logging.Config {
	return logging.Config{
		Level:         c.Logging.Level,
		FilePath:      c.Logging.FilePath,
		MaxSizeMB:     c.Logging.MaxSizeMB,
		MaxFiles:      c.Logging.MaxFiles,
		WriteToStderr: c.Logging.Stderr,
	}
}

func defaultTelemetryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".textsearch", "telemetry.db")
	}
	return filepath.Join(home, ".textsearch", "telemetry.db")
}

// userConfigNames are tried in order inside the user config directory.
var userConfigNames = []string{"config.yaml", "config.yml", "config.toml"}

// GetUserConfigDir returns the directory holding the user configuration:
// $XDG_CONFIG_HOME/textsearch, or ~/.config/textsearch.
func GetUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "textsearch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "textsearch")
	}
	return filepath.Join(home, ".config", "textsearch")
}

// GetUserConfigPath returns the user configuration file in effect. When
// none exists it returns the yaml path a new file would be written to.
func GetUserConfigPath() string {
	dir := GetUserConfigDir()
	for _, name := range userConfigNames {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return filepath.Join(dir, userConfigNames[0])
}

// UserConfigExists returns true if a user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config ($XDG_CONFIG_HOME/textsearch/config.{yaml,yml,toml})
//  3. The explicit file, when path is not empty
//  4. Environment variables (TEXTSEARCH_*)
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		if err := cfg.loadFile(GetUserConfigPath()); err != nil {
			return nil, err
		}
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile decodes path over c. Keys absent from the file keep their
// current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return tserrors.New(tserrors.ErrCodeConfigInvalid, "failed to read config file", err).
			WithDetail("path", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return tserrors.Newf(tserrors.ErrCodeConfigInvalid, "unsupported config format %q", ext).
			WithDetail("path", path).
			WithSuggestion("use a .yaml, .yml or .toml file")
	}
	if err != nil {
		return tserrors.New(tserrors.ErrCodeConfigInvalid, "failed to parse config file", err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies TEXTSEARCH_* variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TEXTSEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TEXTSEARCH_SEARCH_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("TEXTSEARCH_SEARCH_LIMIT", v, err)
		}
		c.Search.Limit = n
	}
	if v := os.Getenv("TEXTSEARCH_MAX_OPEN_SESSIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("TEXTSEARCH_MAX_OPEN_SESSIONS", v, err)
		}
		c.Host.MaxOpenSessions = n
	}
	if v := os.Getenv("TEXTSEARCH_TELEMETRY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("TEXTSEARCH_TELEMETRY", v, err)
		}
		c.Telemetry.Enabled = b
	}
	return nil
}

func envError(name, value string, err error) error {
	return tserrors.New(tserrors.ErrCodeConfigInvalid, "invalid environment override", err).
		WithDetail("variable", name).
		WithDetail("value", value)
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 {
		return invalid("logging.max_size_mb must be non-negative, got %d", c.Logging.MaxSizeMB)
	}
	if c.Logging.MaxFiles < 0 {
		return invalid("logging.max_files must be non-negative, got %d", c.Logging.MaxFiles)
	}
	if c.Search.Limit <= 0 {
		return invalid("search.limit must be positive, got %d", c.Search.Limit)
	}
	if c.Search.QueryCacheSize < 0 {
		return invalid("search.query_cache_size must be non-negative, got %d", c.Search.QueryCacheSize)
	}
	if c.Host.MaxOpenSessions <= 0 {
		return invalid("host.max_open_sessions must be positive, got %d", c.Host.MaxOpenSessions)
	}
	if c.Telemetry.Enabled && c.Telemetry.Path == "" {
		return invalid("telemetry.path is required when telemetry is enabled")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return tserrors.Newf(tserrors.ErrCodeConfigInvalid, format, args...)
}

// WriteFile writes the configuration to path, as TOML for a .toml path
// and YAML otherwise. The write is atomic.
func (c *Config) WriteFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
