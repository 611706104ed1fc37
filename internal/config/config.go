// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/phoenixlens/internal/util"
)

// ============================================================================
// CONFIGURATION TYPES
// ============================================================================

// Config is the complete phoenixlens configuration.
type Config struct {
	Phoenix  PhoenixConfig  `toml:"phoenix"`
	Analysis AnalysisConfig `toml:"analysis"`
	Advisor  AdvisorConfig  `toml:"advisor"`
	Export   ExportConfig   `toml:"export"`
	Cache    CacheConfig    `toml:"cache"`
	Storage  StorageConfig  `toml:"storage"`
}

// PhoenixConfig locates the Phoenix tracing backend.
type PhoenixConfig struct {
	// Endpoint is the Phoenix base URL.
	Endpoint string `toml:"endpoint"`

	// Project is the project whose spans are analyzed.
	Project string `toml:"project"`

	// FallbackProject is tried when Project has no spans in the
	// window. Empty disables the fallback.
	FallbackProject string `toml:"fallback_project"`

	// TimeoutSeconds bounds each HTTP request to the backend.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// AnalysisConfig controls the analysis window and display limits.
type AnalysisConfig struct {
	// MinutesBack is the lookback window for span fetches.
	MinutesBack int `toml:"minutes_back"`

	// MaxRecent caps the recent-calls summary in reports.
	MaxRecent int `toml:"max_recent"`

	// PreviewChars truncates prompt/completion previews.
	PreviewChars int `toml:"preview_chars"`
}

// AdvisorConfig controls the OpenAI efficiency advisor.
type AdvisorConfig struct {
	// Enabled gates the advisor entirely.
	Enabled bool `toml:"enabled"`

	// APIKey authenticates to OpenAI. Usually left empty here and
	// supplied via OPENAI_API_KEY instead.
	// SECURITY: the key is never written back to disk by Save.
	APIKey string `toml:"-"`

	// Model is the OpenAI model used for comparisons.
	Model string `toml:"model"`

	// MaxTokens caps each advisory completion.
	MaxTokens int `toml:"max_tokens"`

	// Temperature for advisory generation. Low by default so repeated
	// runs over the same groups produce similar advice.
	Temperature float64 `toml:"temperature"`

	// CostPerToken estimates advisory spend in USD per token.
	CostPerToken float64 `toml:"cost_per_token"`

	// Concurrency bounds parallel advisory requests.
	Concurrency int `toml:"concurrency"`

	// RequestsPerSecond rate-limits advisory requests across workers.
	RequestsPerSecond float64 `toml:"requests_per_second"`

	// TimeoutSeconds bounds each advisory request.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// ExportConfig controls file exports.
type ExportConfig struct {
	// Formats lists default export formats (csv, json, md, xlsx).
	Formats []string `toml:"formats"`

	// OutputDir receives exported files.
	OutputDir string `toml:"output_dir"`
}

// CacheConfig controls the local SQLite span cache.
type CacheConfig struct {
	// Enabled gates the cache.
	Enabled bool `toml:"enabled"`

	// TTLMinutes is how long a cached fetch stays fresh.
	TTLMinutes int `toml:"ttl_minutes"`

	// Path overrides the cache database location. Empty means
	// <data dir>/cache.db.
	Path string `toml:"path"`
}

// StorageConfig controls run snapshot persistence.
type StorageConfig struct {
	// MaxRuns caps retained run snapshots; oldest are pruned.
	MaxRuns int `toml:"max_runs"`
}

// ============================================================================
// DEFAULTS AND PRESETS
// ============================================================================

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Phoenix: PhoenixConfig{
			Endpoint:       "http://localhost:6006",
			Project:        "default",
			TimeoutSeconds: 30,
		},
		Analysis: AnalysisConfig{
			MinutesBack:  60,
			MaxRecent:    20,
			PreviewChars: 100,
		},
		Advisor: AdvisorConfig{
			Enabled:           true,
			Model:             "gpt-4o-mini",
			MaxTokens:         1000,
			Temperature:       0.3,
			CostPerToken:      0.000002,
			Concurrency:       4,
			RequestsPerSecond: 2,
			TimeoutSeconds:    60,
		},
		Export: ExportConfig{
			Formats:   []string{"csv"},
			OutputDir: ".",
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLMinutes: 5,
		},
		Storage: StorageConfig{
			MaxRuns: 50,
		},
	}
}

// PresetNames lists the built-in presets accepted by --config.
var PresetNames = []string{"dev", "prod", "extended"}

// Preset returns a named configuration preset layered over defaults.
//
//	dev      - tight 5 minute window for local iteration
//	prod     - the defaults (60 minute window)
//	extended - 2 hour window with a larger advisory budget
func Preset(name string) (*Config, error) {
	c := Default()
	switch name {
	case "dev":
		c.Analysis.MinutesBack = 5
		c.Analysis.MaxRecent = 5
	case "prod":
		// Defaults are the production profile.
	case "extended":
		c.Analysis.MinutesBack = 120
		c.Analysis.MaxRecent = 25
		c.Advisor.MaxTokens = 2000
	default:
		return nil, fmt.Errorf("unknown preset %q (valid: %s)", name, strings.Join(PresetNames, ", "))
	}
	return c, nil
}

// fillDefaults replaces zero values with defaults. Load decodes over
// Default(), so omitted keys already carry defaults; this heals keys a
// file sets to an explicit zero or empty value. Booleans are left
// alone so enabled = false sticks.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Phoenix.Endpoint == "" {
		c.Phoenix.Endpoint = d.Phoenix.Endpoint
	}
	if c.Phoenix.Project == "" {
		c.Phoenix.Project = d.Phoenix.Project
	}
	if c.Phoenix.TimeoutSeconds == 0 {
		c.Phoenix.TimeoutSeconds = d.Phoenix.TimeoutSeconds
	}
	if c.Analysis.MinutesBack == 0 {
		c.Analysis.MinutesBack = d.Analysis.MinutesBack
	}
	if c.Analysis.MaxRecent == 0 {
		c.Analysis.MaxRecent = d.Analysis.MaxRecent
	}
	if c.Analysis.PreviewChars == 0 {
		c.Analysis.PreviewChars = d.Analysis.PreviewChars
	}
	if c.Advisor.Model == "" {
		c.Advisor.Model = d.Advisor.Model
	}
	if c.Advisor.MaxTokens == 0 {
		c.Advisor.MaxTokens = d.Advisor.MaxTokens
	}
	if c.Advisor.Temperature == 0 {
		c.Advisor.Temperature = d.Advisor.Temperature
	}
	if c.Advisor.CostPerToken == 0 {
		c.Advisor.CostPerToken = d.Advisor.CostPerToken
	}
	if c.Advisor.Concurrency == 0 {
		c.Advisor.Concurrency = d.Advisor.Concurrency
	}
	if c.Advisor.RequestsPerSecond == 0 {
		c.Advisor.RequestsPerSecond = d.Advisor.RequestsPerSecond
	}
	if c.Advisor.TimeoutSeconds == 0 {
		c.Advisor.TimeoutSeconds = d.Advisor.TimeoutSeconds
	}
	if len(c.Export.Formats) == 0 {
		c.Export.Formats = d.Export.Formats
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = d.Export.OutputDir
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = d.Cache.TTLMinutes
	}
	if c.Storage.MaxRuns == 0 {
		c.Storage.MaxRuns = d.Storage.MaxRuns
	}
}

// ============================================================================
// VALIDATION
// ============================================================================

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates all problems found in one pass, so users
// can fix a config file in one edit instead of one error at a time.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// ValidFormats lists the export formats phoenixlens can produce.
var ValidFormats = []string{"csv", "json", "md", "xlsx"}

// ValidFormat reports whether name is a supported export format.
func ValidFormat(name string) bool {
	for _, f := range ValidFormats {
		if name == f {
			return true
		}
	}
	return false
}

// Validate checks the configuration and returns every problem found as
// a ValidationErrors value, or nil when the config is usable.
func (c *Config) Validate() error {
	var errs ValidationErrors

	u, err := url.Parse(c.Phoenix.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{"phoenix.endpoint", fmt.Sprintf("must be a valid http(s) URL, got %q", c.Phoenix.Endpoint)})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, ValidationError{"phoenix.endpoint", fmt.Sprintf("scheme must be http or https, got %q", u.Scheme)})
	}
	if c.Phoenix.Project == "" {
		errs = append(errs, ValidationError{"phoenix.project", "must not be empty"})
	}
	if c.Phoenix.TimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{"phoenix.timeout_seconds", "must be positive"})
	}
	if c.Analysis.MinutesBack <= 0 {
		errs = append(errs, ValidationError{"analysis.minutes_back", "must be positive"})
	}
	if c.Analysis.MaxRecent < 0 {
		errs = append(errs, ValidationError{"analysis.max_recent", "must not be negative"})
	}
	if c.Advisor.MaxTokens <= 0 {
		errs = append(errs, ValidationError{"advisor.max_tokens", "must be positive"})
	}
	if c.Advisor.Temperature < 0 || c.Advisor.Temperature > 2 {
		errs = append(errs, ValidationError{"advisor.temperature", "must be between 0 and 2"})
	}
	if c.Advisor.Concurrency <= 0 {
		errs = append(errs, ValidationError{"advisor.concurrency", "must be positive"})
	}
	if c.Advisor.RequestsPerSecond <= 0 {
		errs = append(errs, ValidationError{"advisor.requests_per_second", "must be positive"})
	}
	for _, f := range c.Export.Formats {
		if !ValidFormat(f) {
			errs = append(errs, ValidationError{"export.formats", fmt.Sprintf("unknown format %q (valid: %s)", f, strings.Join(ValidFormats, ", "))})
		}
	}
	if c.Cache.TTLMinutes <= 0 {
		errs = append(errs, ValidationError{"cache.ttl_minutes", "must be positive"})
	}
	if c.Storage.MaxRuns <= 0 {
		errs = append(errs, ValidationError{"storage.max_runs", "must be positive"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ============================================================================
// ENVIRONMENT OVERRIDES
// ============================================================================

// ApplyEnvOverrides overlays environment variables on the config.
// Environment always wins over file values; this runs after load so
// CI and shell sessions can retarget without editing files.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PHOENIXLENS_ENDPOINT"); v != "" {
		c.Phoenix.Endpoint = v
	}
	if v := os.Getenv("PHOENIXLENS_PROJECT"); v != "" {
		c.Phoenix.Project = v
	}
	if v := os.Getenv("PHOENIXLENS_FALLBACK_PROJECT"); v != "" {
		c.Phoenix.FallbackProject = v
	}
	if v := os.Getenv("PHOENIXLENS_MINUTES_BACK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Analysis.MinutesBack = n
		}
	}
	if v := os.Getenv("PHOENIXLENS_OUTPUT_DIR"); v != "" {
		c.Export.OutputDir = v
	}
	// PHOENIXLENS_OPENAI_KEY takes priority so a dedicated key can be
	// used without disturbing the ambient OPENAI_API_KEY.
	if v := os.Getenv("PHOENIXLENS_OPENAI_KEY"); v != "" {
		c.Advisor.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Advisor.APIKey == "" {
		c.Advisor.APIKey = v
	}
}

// ============================================================================
// LOADING AND SAVING
// ============================================================================

// DataDir returns the phoenixlens data directory (~/.phoenixlens),
// creating it if needed.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	dir := filepath.Join(home, ".phoenixlens")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads and validates a config file, filling unset keys with
// defaults and applying environment overrides.
//
// RELIABILITY: the file is decoded over Default() so TOML only
// overwrites keys it actually contains. Decoding into a zero Config
// would make an omitted [advisor] or [cache] section read as
// enabled = false.
func Load(path string) (*Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.fillDefaults()
	c.ApplyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadOrDefault loads the config at path, falling back to defaults
// (plus env overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c := Default()
		c.ApplyEnvOverrides()
		return c, nil
	}
	return Load(path)
}

// Save writes the config to path atomically with a generated header.
// The advisor API key is deliberately excluded from serialization.
func (c *Config) Save(path string) error {
	var sb strings.Builder
	sb.WriteString("# phoenixlens configuration\n")
	sb.WriteString("# Generated by 'phoenixlens config'. Edit freely.\n\n")
	enc := toml.NewEncoder(&sb)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return util.AtomicWriteFile(path, []byte(sb.String()), 0o644)
}

// ============================================================================
// GLOBAL ACCESS
// ============================================================================

var (
	globalMu sync.RWMutex
	global   *Config
)

// Global returns the process-wide configuration, defaulting if none
// was set. Command handlers read through this after main loads config.
func Global() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if global == nil {
		return Default()
	}
	return global
}

// SetGlobal installs the process-wide configuration.
func SetGlobal(c *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = c
}

// ============================================================================
// DOT-NOTATION ACCESS
// ============================================================================

// Get returns the value of a dot-notation config key, e.g.
// "phoenix.endpoint" or "analysis.minutes_back".
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "phoenix.endpoint":
		return c.Phoenix.Endpoint, nil
	case "phoenix.project":
		return c.Phoenix.Project, nil
	case "phoenix.fallback_project":
		return c.Phoenix.FallbackProject, nil
	case "phoenix.timeout_seconds":
		return strconv.Itoa(c.Phoenix.TimeoutSeconds), nil
	case "analysis.minutes_back":
		return strconv.Itoa(c.Analysis.MinutesBack), nil
	case "analysis.max_recent":
		return strconv.Itoa(c.Analysis.MaxRecent), nil
	case "analysis.preview_chars":
		return strconv.Itoa(c.Analysis.PreviewChars), nil
	case "advisor.enabled":
		return strconv.FormatBool(c.Advisor.Enabled), nil
	case "advisor.model":
		return c.Advisor.Model, nil
	case "advisor.max_tokens":
		return strconv.Itoa(c.Advisor.MaxTokens), nil
	case "advisor.temperature":
		return strconv.FormatFloat(c.Advisor.Temperature, 'g', -1, 64), nil
	case "advisor.cost_per_token":
		return strconv.FormatFloat(c.Advisor.CostPerToken, 'g', -1, 64), nil
	case "export.formats":
		return strings.Join(c.Export.Formats, ","), nil
	case "export.output_dir":
		return c.Export.OutputDir, nil
	case "cache.enabled":
		return strconv.FormatBool(c.Cache.Enabled), nil
	case "cache.ttl_minutes":
		return strconv.Itoa(c.Cache.TTLMinutes), nil
	case "storage.max_runs":
		return strconv.Itoa(c.Storage.MaxRuns), nil
	}
	return "", fmt.Errorf("unknown config key %q", key)
}

// Set assigns a dot-notation config key from its string form,
// validating the resulting config before reporting success.
func (c *Config) Set(key, value string) error {
	switch key {
	case "phoenix.endpoint":
		c.Phoenix.Endpoint = value
	case "phoenix.project":
		c.Phoenix.Project = value
	case "phoenix.fallback_project":
		c.Phoenix.FallbackProject = value
	case "phoenix.timeout_seconds":
		return c.setInt(&c.Phoenix.TimeoutSeconds, key, value)
	case "analysis.minutes_back":
		return c.setInt(&c.Analysis.MinutesBack, key, value)
	case "analysis.max_recent":
		return c.setInt(&c.Analysis.MaxRecent, key, value)
	case "analysis.preview_chars":
		return c.setInt(&c.Analysis.PreviewChars, key, value)
	case "advisor.enabled":
		return c.setBool(&c.Advisor.Enabled, key, value)
	case "advisor.model":
		c.Advisor.Model = value
	case "advisor.max_tokens":
		return c.setInt(&c.Advisor.MaxTokens, key, value)
	case "advisor.temperature":
		return c.setFloat(&c.Advisor.Temperature, key, value)
	case "advisor.cost_per_token":
		return c.setFloat(&c.Advisor.CostPerToken, key, value)
	case "export.formats":
		c.Export.Formats = splitFormats(value)
	case "export.output_dir":
		c.Export.OutputDir = value
	case "cache.enabled":
		return c.setBool(&c.Cache.Enabled, key, value)
	case "cache.ttl_minutes":
		return c.setInt(&c.Cache.TTLMinutes, key, value)
	case "storage.max_runs":
		return c.setInt(&c.Storage.MaxRuns, key, value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return c.Validate()
}

func (c *Config) setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: expected integer, got %q", key, value)
	}
	old := *dst
	*dst = n
	if err := c.Validate(); err != nil {
		*dst = old
		return err
	}
	return nil
}

func (c *Config) setFloat(dst *float64, key, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s: expected number, got %q", key, value)
	}
	old := *dst
	*dst = f
	if err := c.Validate(); err != nil {
		*dst = old
		return err
	}
	return nil
}

func (c *Config) setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: expected true or false, got %q", key, value)
	}
	*dst = b
	return nil
}

// splitFormats parses a comma-separated format list, trimming blanks.
func splitFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Keys returns every dot-notation key Get understands, for listing.
func Keys() []string {
	return []string{
		"phoenix.endpoint",
		"phoenix.project",
		"phoenix.fallback_project",
		"phoenix.timeout_seconds",
		"analysis.minutes_back",
		"analysis.max_recent",
		"analysis.preview_chars",
		"advisor.enabled",
		"advisor.model",
		"advisor.max_tokens",
		"advisor.temperature",
		"advisor.cost_per_token",
		"export.formats",
		"export.output_dir",
		"cache.enabled",
		"cache.ttl_minutes",
		"storage.max_runs",
	}
}
