// Package config loads dictv's YAML-backed configuration: the data root,
// HTTP server defaults, default search parameters, and writer/performance
// tuning. Precedence mirrors the teacher's layered config (defaults → user
// config → project config → environment), simplified to dictv's much
// smaller surface — there is no per-project detection here, only a single
// data root and a handful of server/search knobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is dictv's complete configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Paths   PathsConfig  `yaml:"paths" json:"paths"`
	Search  SearchConfig `yaml:"search" json:"search"`
	Server  ServerConfig `yaml:"server" json:"server"`
	Writer  WriterConfig `yaml:"writer" json:"writer"`
}

// PathsConfig configures where dictv keeps its data.
type PathsConfig struct {
	// DataRoot is the directory holding data/ and index/. Empty means the
	// manager resolves $HOME/.dictv/ itself.
	DataRoot string `yaml:"data_root" json:"data_root"`
}

// SearchConfig configures the default query parameters applied when a
// caller (HTTP or CLI) omits them, per spec.md §6's documented defaults.
type SearchConfig struct {
	DefaultMode        string `yaml:"default_mode" json:"default_mode"`
	DefaultLanguage    string `yaml:"default_language" json:"default_language"`
	DefaultMaxDistance int    `yaml:"default_max_distance" json:"default_max_distance"`
	DefaultLimit       int    `yaml:"default_limit" json:"default_limit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `yaml:"port" json:"port"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// WriterConfig configures the index writer's bounded memory buffer.
type WriterConfig struct {
	// BatchMiB bounds uncommitted postings held before a segment flush.
	// Default 100, tunable down to 50 under memory pressure (spec.md §5).
	BatchMiB int `yaml:"batch_mib" json:"batch_mib"`
}

// MinBatchMiB is the floor Config.Validate enforces on Writer.BatchMiB.
const MinBatchMiB = 50

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths:   PathsConfig{DataRoot: ""},
		Search: SearchConfig{
			DefaultMode:        "fuzzy",
			DefaultLanguage:    "de-en",
			DefaultMaxDistance: 2,
			DefaultLimit:       20,
		},
		Server: ServerConfig{
			Port:     8080,
			LogLevel: "info",
		},
		Writer: WriterConfig{
			BatchMiB: 100,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file,
// following the XDG Base Directory spec:
//   - $XDG_CONFIG_HOME/dictv/config.yaml (if set)
//   - ~/.config/dictv/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dictv", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "dictv", "config.yaml")
	}
	return filepath.Join(home, ".config", "dictv", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if present.
// A missing file is not an error.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file, or nil if absent.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration for the given project directory, applying
// precedence: hardcoded defaults → user config → project config
// (.dictv.yaml in dir) → DICTV_* environment variables (highest).
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load .dictv.yaml or .dictv.yml from dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".dictv.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".dictv.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Paths.DataRoot != "" {
		c.Paths.DataRoot = other.Paths.DataRoot
	}
	if other.Search.DefaultMode != "" {
		c.Search.DefaultMode = other.Search.DefaultMode
	}
	if other.Search.DefaultLanguage != "" {
		c.Search.DefaultLanguage = other.Search.DefaultLanguage
	}
	if other.Search.DefaultMaxDistance != 0 {
		c.Search.DefaultMaxDistance = other.Search.DefaultMaxDistance
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Writer.BatchMiB != 0 {
		c.Writer.BatchMiB = other.Writer.BatchMiB
	}
}

// applyEnvOverrides applies DICTV_* environment variable overrides, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DICTV_DATA_ROOT"); v != "" {
		c.Paths.DataRoot = v
	}
	if v := os.Getenv("DICTV_DEFAULT_MODE"); v != "" {
		c.Search.DefaultMode = v
	}
	if v := os.Getenv("DICTV_DEFAULT_LANGUAGE"); v != "" {
		c.Search.DefaultLanguage = v
	}
	if v := os.Getenv("DICTV_DEFAULT_MAX_DISTANCE"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			c.Search.DefaultMaxDistance = d
		}
	}
	if v := os.Getenv("DICTV_DEFAULT_LIMIT"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			c.Search.DefaultLimit = l
		}
	}
	if v := os.Getenv("DICTV_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("DICTV_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("DICTV_WRITER_BATCH_MIB"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			c.Writer.BatchMiB = m
		}
	}
}

var validModes = map[string]bool{"exact": true, "fuzzy": true, "prefix": true}
var validLanguages = map[string]bool{"de-en": true, "en-de": true}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	if !validModes[strings.ToLower(c.Search.DefaultMode)] {
		return fmt.Errorf("search.default_mode must be 'exact', 'fuzzy', or 'prefix', got %s", c.Search.DefaultMode)
	}
	if !validLanguages[c.Search.DefaultLanguage] {
		return fmt.Errorf("search.default_language must be 'de-en' or 'en-de', got %s", c.Search.DefaultLanguage)
	}
	if c.Search.DefaultMaxDistance != 1 && c.Search.DefaultMaxDistance != 2 {
		return fmt.Errorf("search.default_max_distance must be 1 or 2, got %d", c.Search.DefaultMaxDistance)
	}
	if c.Search.DefaultLimit < 0 {
		return fmt.Errorf("search.default_limit must be non-negative, got %d", c.Search.DefaultLimit)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	if c.Writer.BatchMiB != 0 && c.Writer.BatchMiB < MinBatchMiB {
		return fmt.Errorf("writer.batch_mib must be >= %d, got %d", MinBatchMiB, c.Writer.BatchMiB)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
