// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/folio-chat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete folio-chat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Remote assistant
	Endpoint EndpointConfig `toml:"endpoint" json:"endpoint"`

	// Rapid-repeat and ban thresholds
	Guard GuardConfig `toml:"guard" json:"guard"`

	// Persistent store
	Store StoreConfig `toml:"store" json:"store"`

	// Message list geometry
	Viewport ViewportConfig `toml:"viewport" json:"viewport"`

	// Logging
	Log LogConfig `toml:"log" json:"log"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`
}

// EndpointConfig describes the remote assistant.
type EndpointConfig struct {
	// URL receives the POST requests
	URL string `toml:"url" json:"url"`
	// TimeoutSecs bounds one reply. Default: 600 (10 minutes)
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// Headers are added to every request
	Headers map[string]string `toml:"headers" json:"headers,omitempty"`
}

// Timeout returns TimeoutSecs as a duration.
func (e EndpointConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// GuardConfig holds abuse-prevention thresholds.
type GuardConfig struct {
	// MinIntervalMs is the shortest accepted gap between submissions
	MinIntervalMs int `toml:"min_interval_ms" json:"min_interval_ms"`
	// BanThreshold is the number of violations that triggers a ban
	BanThreshold int `toml:"ban_threshold" json:"ban_threshold"`
	// BanDurationSecs is how long a ban lasts
	BanDurationSecs int `toml:"ban_duration_secs" json:"ban_duration_secs"`
}

// MinInterval returns MinIntervalMs as a duration.
func (g GuardConfig) MinInterval() time.Duration {
	return time.Duration(g.MinIntervalMs) * time.Millisecond
}

// BanDuration returns BanDurationSecs as a duration.
func (g GuardConfig) BanDuration() time.Duration {
	return time.Duration(g.BanDurationSecs) * time.Second
}

// StoreConfig selects and configures the persistent store.
type StoreConfig struct {
	// Backend is one of: file, sqlite, pebble, redis, memory
	Backend string `toml:"backend" json:"backend"`
	// Path is the file, database or directory for local backends.
	// Empty selects a default under the config directory.
	Path string `toml:"path" json:"path"`

	RedisAddr     string `toml:"redis_addr" json:"redis_addr"`
	RedisPassword string `toml:"redis_password" json:"redis_password"`
	RedisDB       int    `toml:"redis_db" json:"redis_db"`
	RedisPrefix   string `toml:"redis_prefix" json:"redis_prefix"`

	// MaxMessages caps the stored history (0 = unlimited)
	MaxMessages int `toml:"max_messages" json:"max_messages"`
}

// ViewportConfig is the message list geometry in rows.
type ViewportConfig struct {
	Overscan int `toml:"overscan" json:"overscan"`
	// RowHeight and Height are used by `status` and the engine's Window helper
	RowHeight int `toml:"row_height" json:"row_height"`
	Height    int `toml:"height" json:"height"`
}

// LogConfig controls the log output.
type LogConfig struct {
	// Level is one of: debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// Format is "console" or "json"
	Format string `toml:"format" json:"format"`
	// File receives log output. Empty means ~/.folio-chat/folio-chat.log
	File string `toml:"file" json:"file"`
}

// UIConfig contains widget settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light"
	Theme string `toml:"theme" json:"theme"`
	// Title is shown in the widget header
	Title string `toml:"title" json:"title"`
	// Markdown renders assistant replies with glamour
	Markdown bool `toml:"markdown" json:"markdown"`
	// StartOpen opens the chat panel on launch
	StartOpen bool `toml:"start_open" json:"start_open"`
}

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		Version: "1",
		Endpoint: EndpointConfig{
			URL:         "http://localhost:8787/chat",
			TimeoutSecs: 600,
		},
		Guard: GuardConfig{
			MinIntervalMs:   500,
			BanThreshold:    10,
			BanDurationSecs: 180,
		},
		Store: StoreConfig{
			Backend: "file",
		},
		Viewport: ViewportConfig{
			Overscan:  2,
			RowHeight: 80,
			Height:    400,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		UI: UIConfig{
			Theme:     "auto",
			Title:     "Ask me anything",
			Markdown:  true,
			StartOpen: true,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the folio-chat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".folio-chat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// DefaultStorePath returns where a local backend keeps its data.
func DefaultStorePath(backend string) string {
	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	switch strings.ToLower(backend) {
	case "sqlite":
		return filepath.Join(dir, "store.db")
	case "pebble":
		return filepath.Join(dir, "pebble")
	default:
		return filepath.Join(dir, "store.json")
	}
}

// DefaultLogPath returns the log file used when none is configured.
func DefaultLogPath() string {
	dir, err := ConfigDir()
	if err != nil {
		return "folio-chat.log"
	}
	return filepath.Join(dir, "folio-chat.log")
}

// ensureSecurePermissions tightens config files to 0600; they may hold a
// redis password.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadDotEnv loads ./.env into the process environment. Variables already
// set win. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last. A file that fails to parse is
// reported alongside the defaults.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr != nil {
			continue
		}
		cfg, err := LoadFromPath(path)
		if err != nil {
			var verrs ValidateErrors
			if errors.As(err, &verrs) {
				return nil, err
			}
			defaults, derr := finish(Default())
			if derr != nil {
				return nil, derr
			}
			return defaults, err
		}
		return cfg, nil
	}

	return finish(Default())
}

// LoadTOML loads configuration from a TOML file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file into cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file with env overrides
// and validation. Files ending in .json are JSON; anything else is TOML.
// Keys the file omits keep their default values.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// finish applies env overrides, resolves derived defaults and validates.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Endpoint
	if cfg.Endpoint.URL == "" {
		cfg.Endpoint.URL = defaults.Endpoint.URL
	}
	if cfg.Endpoint.TimeoutSecs == 0 {
		cfg.Endpoint.TimeoutSecs = defaults.Endpoint.TimeoutSecs
	}

	// Guard
	if cfg.Guard.MinIntervalMs == 0 {
		cfg.Guard.MinIntervalMs = defaults.Guard.MinIntervalMs
	}
	if cfg.Guard.BanThreshold == 0 {
		cfg.Guard.BanThreshold = defaults.Guard.BanThreshold
	}
	if cfg.Guard.BanDurationSecs == 0 {
		cfg.Guard.BanDurationSecs = defaults.Guard.BanDurationSecs
	}

	// Store
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = defaults.Store.Backend
	}
	cfg.Store.Backend = strings.ToLower(cfg.Store.Backend)
	if cfg.Store.Path == "" && cfg.Store.Backend != "redis" && cfg.Store.Backend != "memory" {
		cfg.Store.Path = DefaultStorePath(cfg.Store.Backend)
	}

	// Viewport
	if cfg.Viewport.RowHeight == 0 {
		cfg.Viewport.RowHeight = defaults.Viewport.RowHeight
	}
	if cfg.Viewport.Height == 0 {
		cfg.Viewport.Height = defaults.Viewport.Height
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if cfg.UI.Title == "" {
		cfg.UI.Title = defaults.UI.Title
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# folio-chat configuration file\n")
	b.WriteString("# Generated by folio-chat - edit with care\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration as JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validBackends = map[string]bool{"file": true, "sqlite": true, "pebble": true, "redis": true, "memory": true}
	validLevels   = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats  = map[string]bool{"console": true, "json": true}
	validThemes   = map[string]bool{"auto": true, "dark": true, "light": true}
)

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Endpoint
	if u, err := url.Parse(c.Endpoint.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		add("endpoint.url", "invalid URL '%s', must be an absolute http(s) URL", c.Endpoint.URL)
	}
	if c.Endpoint.TimeoutSecs < 1 {
		add("endpoint.timeout_secs", "must be at least 1, got %d", c.Endpoint.TimeoutSecs)
	}

	// Guard
	if c.Guard.MinIntervalMs < 0 {
		add("guard.min_interval_ms", "must not be negative, got %d", c.Guard.MinIntervalMs)
	}
	if c.Guard.BanThreshold < 1 {
		add("guard.ban_threshold", "must be at least 1, got %d", c.Guard.BanThreshold)
	}
	if c.Guard.BanDurationSecs < 1 {
		add("guard.ban_duration_secs", "must be at least 1, got %d", c.Guard.BanDurationSecs)
	}

	// Store
	if !validBackends[c.Store.Backend] {
		add("store.backend", "invalid backend '%s', must be one of: file, sqlite, pebble, redis, memory", c.Store.Backend)
	}
	if c.Store.Backend == "redis" && c.Store.RedisAddr == "" {
		add("store.redis_addr", "required when backend is redis")
	}
	if c.Store.MaxMessages < 0 {
		add("store.max_messages", "must not be negative, got %d", c.Store.MaxMessages)
	}

	// Viewport
	if c.Viewport.Overscan < 0 {
		add("viewport.overscan", "must not be negative, got %d", c.Viewport.Overscan)
	}
	if c.Viewport.RowHeight < 1 {
		add("viewport.row_height", "must be at least 1, got %d", c.Viewport.RowHeight)
	}
	if c.Viewport.Height < 0 {
		add("viewport.height", "must not be negative, got %d", c.Viewport.Height)
	}

	// Log
	if !validLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		add("log.format", "invalid format '%s', must be console or json", c.Log.Format)
	}

	// UI
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - FOLIO_ENDPOINT: overrides endpoint.url
//   - FOLIO_TIMEOUT_SECS: overrides endpoint.timeout_secs
//   - FOLIO_STORE_BACKEND: overrides store.backend
//   - FOLIO_STORE_PATH: overrides store.path
//   - FOLIO_REDIS_ADDR: overrides store.redis_addr
//   - FOLIO_REDIS_PASSWORD: overrides store.redis_password
//   - FOLIO_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("FOLIO_ENDPOINT"); v != "" {
		c.Endpoint.URL = v
	}

	if v := os.Getenv("FOLIO_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Endpoint.TimeoutSecs = secs
		} else {
			fmt.Fprintf(os.Stderr, "Warning: ignoring invalid FOLIO_TIMEOUT_SECS=%q\n", v)
		}
	}

	if v := os.Getenv("FOLIO_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("FOLIO_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("FOLIO_REDIS_ADDR"); v != "" {
		c.Store.RedisAddr = v
	}
	if v := os.Getenv("FOLIO_REDIS_PASSWORD"); v != "" {
		c.Store.RedisPassword = v
	}

	if v := os.Getenv("FOLIO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Endpoint.Headers != nil {
		clone.Endpoint.Headers = make(map[string]string, len(c.Endpoint.Headers))
		for k, v := range c.Endpoint.Headers {
			clone.Endpoint.Headers[k] = v
		}
	}
	return &clone
}

// String returns a string representation of the config for debugging.
// Secrets are redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Store.RedisPassword != "" {
		safe.Store.RedisPassword = "[REDACTED]"
	}
	for k := range safe.Endpoint.Headers {
		if strings.EqualFold(k, "Authorization") {
			safe.Endpoint.Headers[k] = "[REDACTED]"
		}
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
