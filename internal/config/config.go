// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/docchat/internal/cloud"
	"github.com/jeranaias/docchat/internal/format"
	"github.com/jeranaias/docchat/internal/util"
)

// Limits enforced by Validate.
const (
	MaxRetriesCeiling = 20
	MaxListRefreshes  = 10
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete docchat configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Delivery  DeliveryConfig  `toml:"delivery"`
	Provision ProvisionConfig `toml:"provision"`
	Validator ValidatorConfig `toml:"validator"`
	Log       LogConfig       `toml:"log"`

	// Instructions overrides the built-in instruction catalog, keyed
	// category -> type -> text. An empty text removes the entry.
	Instructions map[string]map[string]string `toml:"instructions"`
}

// APIConfig describes the assistant service.
type APIConfig struct {
	// BaseURL is the chat API root, e.g. https://host/api/chat.
	BaseURL string `toml:"base_url"`
	// DocumentsURL is the service root for templates and documents.
	// Empty derives it from BaseURL.
	DocumentsURL string `toml:"documents_url"`
	// Token is the bearer token. Never logged.
	Token string `toml:"token"`
	// Timeout bounds each HTTP request.
	Timeout Duration `toml:"timeout"`
	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64 `toml:"rate_limit"`
}

// DeliveryConfig tunes the retry loop.
type DeliveryConfig struct {
	MaxRetries        int      `toml:"max_retries"`
	SettleDelay       Duration `toml:"settle_delay"`
	InterAttemptDelay Duration `toml:"inter_attempt_delay"`
	ReconcileDelay    Duration `toml:"reconcile_delay"`
	DefaultFormat     string   `toml:"default_format"`
}

// ProvisionConfig tunes conversation creation.
type ProvisionConfig struct {
	SettleDelay   Duration `toml:"settle_delay"`
	ListRefreshes int      `toml:"list_refreshes"`
}

// ValidatorConfig lists the success phrases a document reply must contain.
type ValidatorConfig struct {
	Markers []format.Marker `toml:"markers"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration written as a string ("2s", "100ms") in TOML.
type Duration struct {
	time.Duration
}

// D wraps d.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *Config {
	markers := make([]format.Marker, len(format.DefaultMarkers))
	copy(markers, format.DefaultMarkers)

	return &Config{
		API: APIConfig{
			BaseURL: cloud.DefaultBaseURL,
			Timeout: D(cloud.DefaultTimeout),
		},
		Delivery: DeliveryConfig{
			MaxRetries:        5,
			SettleDelay:       D(2 * time.Second),
			InterAttemptDelay: D(1 * time.Second),
			ReconcileDelay:    D(1 * time.Second),
			DefaultFormat:     format.Default.String(),
		},
		Provision: ProvisionConfig{
			SettleDelay:   D(100 * time.Millisecond),
			ListRefreshes: 3,
		},
		Validator: ValidatorConfig{Markers: markers},
		Log:       LogConfig{Level: "info"},
	}
}

// fillDefaults fills in any zero values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = defaults.API.BaseURL
	}
	if cfg.API.Timeout.Duration == 0 {
		cfg.API.Timeout = defaults.API.Timeout
	}

	if cfg.Delivery.MaxRetries == 0 {
		cfg.Delivery.MaxRetries = defaults.Delivery.MaxRetries
	}
	if cfg.Delivery.SettleDelay.Duration == 0 {
		cfg.Delivery.SettleDelay = defaults.Delivery.SettleDelay
	}
	if cfg.Delivery.InterAttemptDelay.Duration == 0 {
		cfg.Delivery.InterAttemptDelay = defaults.Delivery.InterAttemptDelay
	}
	if cfg.Delivery.ReconcileDelay.Duration == 0 {
		cfg.Delivery.ReconcileDelay = defaults.Delivery.ReconcileDelay
	}
	if cfg.Delivery.DefaultFormat == "" {
		cfg.Delivery.DefaultFormat = defaults.Delivery.DefaultFormat
	}

	if cfg.Provision.SettleDelay.Duration == 0 {
		cfg.Provision.SettleDelay = defaults.Provision.SettleDelay
	}
	if cfg.Provision.ListRefreshes == 0 {
		cfg.Provision.ListRefreshes = defaults.Provision.ListRefreshes
	}

	if len(cfg.Validator.Markers) == 0 {
		cfg.Validator.Markers = defaults.Validator.Markers
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the docchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".docchat"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens a config file to 0600.
// SECURITY: The file may hold the API token.
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

// LoadDotEnv loads KEY=value pairs from the given files (".env" when none are
// named) into the process environment. Variables already set win. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load loads ~/.docchat/config.toml when present, falls back to defaults
// otherwise, and applies environment overrides last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg. Unknown keys are rejected.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML.
// SECURITY: The file is written 0600 through an atomic rename.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# docchat configuration file\n")
	buf.WriteString("# Durations are strings such as \"2s\" or \"100ms\".\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
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

// Validate checks the configuration and returns ValidateErrors when anything
// is out of range.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, msg string) {
		errs = append(errs, ValidationError{Field: field, Message: msg})
	}

	if err := validateURL(c.API.BaseURL); err != nil {
		add("api.base_url", err.Error())
	}
	if c.API.DocumentsURL != "" {
		if err := validateURL(c.API.DocumentsURL); err != nil {
			add("api.documents_url", err.Error())
		}
	}
	if c.API.Timeout.Duration < 0 {
		add("api.timeout", "must not be negative")
	}
	if c.API.RateLimit < 0 {
		add("api.rate_limit", "must not be negative")
	}

	if c.Delivery.MaxRetries < 1 || c.Delivery.MaxRetries > MaxRetriesCeiling {
		add("delivery.max_retries", fmt.Sprintf("must be between 1 and %d", MaxRetriesCeiling))
	}
	for field, d := range map[string]Duration{
		"delivery.settle_delay":        c.Delivery.SettleDelay,
		"delivery.inter_attempt_delay": c.Delivery.InterAttemptDelay,
		"delivery.reconcile_delay":     c.Delivery.ReconcileDelay,
		"provision.settle_delay":       c.Provision.SettleDelay,
	} {
		if d.Duration < 0 {
			add(field, "must not be negative")
		}
	}
	if _, err := format.Parse(c.Delivery.DefaultFormat); err != nil {
		add("delivery.default_format", err.Error())
	}

	if c.Provision.ListRefreshes < 1 || c.Provision.ListRefreshes > MaxListRefreshes {
		add("provision.list_refreshes", fmt.Sprintf("must be between 1 and %d", MaxListRefreshes))
	}

	for i, m := range c.Validator.Markers {
		if strings.TrimSpace(m.Subject) == "" || strings.TrimSpace(m.Outcome) == "" {
			add(fmt.Sprintf("validator.markers[%d]", i), "subject and outcome are required")
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error", "disabled", "off", "none":
	default:
		add("log.level", fmt.Sprintf("unknown level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - DOCCHAT_API_URL: overrides api.base_url
//   - DOCCHAT_DOCUMENTS_URL: overrides api.documents_url
//   - DOCCHAT_TOKEN: overrides api.token
//   - DOCCHAT_LOG_LEVEL: overrides log.level
//   - DOCCHAT_FORMAT: overrides delivery.default_format
//   - DOCCHAT_MAX_RETRIES: overrides delivery.max_retries (ignored unless an integer)
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("DOCCHAT_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("DOCCHAT_DOCUMENTS_URL"); v != "" {
		c.API.DocumentsURL = v
	}
	if v := os.Getenv("DOCCHAT_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("DOCCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DOCCHAT_FORMAT"); v != "" {
		c.Delivery.DefaultFormat = v
	}
	if v := os.Getenv("DOCCHAT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Delivery.MaxRetries = n
		}
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// DefaultFormat returns the parsed default output format.
func (c *Config) DefaultFormat() format.Format {
	f, err := format.Parse(c.Delivery.DefaultFormat)
	if err != nil {
		return format.Default
	}
	return f
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Validator.Markers = append([]format.Marker(nil), c.Validator.Markers...)
	if c.Instructions != nil {
		clone.Instructions = make(map[string]map[string]string, len(c.Instructions))
		for cat, types := range c.Instructions {
			inner := make(map[string]string, len(types))
			for k, v := range types {
				inner[k] = v
			}
			clone.Instructions[cat] = inner
		}
	}
	return &clone
}

// String renders the config as TOML.
// SECURITY: The API token is redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.API.Token != "" {
		safe.API.Token = "[REDACTED]"
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(safe); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}
