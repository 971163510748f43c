// Package config handles loading, validating, and managing watch configuration
// for sasswatch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// defaultExtensions is the built-in list of recognized stylesheet extensions.
var defaultExtensions = [...]string{"scss", "sass", "css"}

// DefaultExtensions returns a fresh copy of the built-in extension list.
func DefaultExtensions() []string {
	exts := defaultExtensions
	return exts[:]
}

// DefaultLiveReloadAddr is the address the live reload endpoint listens on
// when enabled without an explicit address.
const DefaultLiveReloadAddr = "localhost:35729"

// DefaultDebounce is the window in which repeated content events for the same
// file are coalesced into one.
const DefaultDebounce = 50 * time.Millisecond

// Config is the complete configuration of a watch session.
type Config struct {
	RootDir           string           `yaml:"rootDir"           toml:"rootDir"           mapstructure:"rootDir"`
	IncludePaths      []string         `yaml:"includePaths"      toml:"includePaths"      mapstructure:"includePaths"`
	IncludeExtensions []string         `yaml:"includeExtensions" toml:"includeExtensions" mapstructure:"includeExtensions"`
	Exclude           []string         `yaml:"exclude"           toml:"exclude"           mapstructure:"exclude"`
	Verbosity         int              `yaml:"verbosity"         toml:"verbosity"         mapstructure:"verbosity"`
	Debounce          time.Duration    `yaml:"debounce"          toml:"debounce"          mapstructure:"debounce"`
	Command           string           `yaml:"command"           toml:"command"           mapstructure:"command"`
	Output            string           `yaml:"output"            toml:"output"            mapstructure:"output"`
	LiveReload        LiveReloadConfig `yaml:"liveReload"        toml:"liveReload"        mapstructure:"liveReload"`
}

// LiveReloadConfig controls the websocket endpoint that announces updates.
type LiveReloadConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr"    toml:"addr"    mapstructure:"addr"`
}

// Default returns a Config populated with default values. RootDir is left
// empty and filled in by Normalize.
func Default() *Config {
	return &Config{
		IncludePaths:      []string{},
		IncludeExtensions: DefaultExtensions(),
		Exclude:           []string{"**/node_modules"},
		Debounce:          DefaultDebounce,
		LiveReload: LiveReloadConfig{
			Addr: DefaultLiveReloadAddr,
		},
	}
}

// Load returns a Config with defaults applied first, then the optional
// configuration file at configPath (YAML or TOML), then SASSWATCH_* environment
// variables. Entries from SASS_PATH are appended to IncludePaths.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetDefault("rootDir", cfg.RootDir)
	v.SetDefault("includePaths", cfg.IncludePaths)
	v.SetDefault("includeExtensions", cfg.IncludeExtensions)
	v.SetDefault("exclude", cfg.Exclude)
	v.SetDefault("verbosity", cfg.Verbosity)
	v.SetDefault("debounce", cfg.Debounce)
	v.SetDefault("command", cfg.Command)
	v.SetDefault("output", cfg.Output)
	v.SetDefault("liveReload.enabled", cfg.LiveReload.Enabled)
	v.SetDefault("liveReload.addr", cfg.LiveReload.Addr)

	v.SetEnvPrefix("SASSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		// Determine format from extension.
		ext := strings.TrimPrefix(filepath.Ext(configPath), ".")
		switch ext {
		case "toml":
			v.SetConfigType("toml")
		default:
			v.SetConfigType("yaml")
		}
		v.SetConfigFile(configPath)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if sassPath := os.Getenv("SASS_PATH"); sassPath != "" {
		for _, p := range filepath.SplitList(sassPath) {
			if p != "" {
				cfg.IncludePaths = append(cfg.IncludePaths, p)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the Config for errors.
// It returns a descriptive error if:
//   - IncludeExtensions is empty or contains a blank entry
//   - an extension contains a path separator
//   - Verbosity or Debounce is negative
func (c *Config) Validate() error {
	if len(c.IncludeExtensions) == 0 {
		return fmt.Errorf("config: at least one include extension is required")
	}
	for _, ext := range c.IncludeExtensions {
		trimmed := strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if trimmed == "" {
			return fmt.Errorf("config: include extensions must not be empty")
		}
		if strings.ContainsAny(trimmed, `/\`) {
			return fmt.Errorf("config: invalid include extension %q", ext)
		}
	}
	if c.Verbosity < 0 {
		return fmt.Errorf("config: verbosity must not be negative (got %d)", c.Verbosity)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("config: debounce must not be negative (got %s)", c.Debounce)
	}
	return nil
}

// Normalize makes RootDir and IncludePaths absolute, fills RootDir from the
// working directory when unset, and strips leading dots from extensions.
func (c *Config) Normalize() error {
	if c.RootDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determining working directory: %w", err)
		}
		c.RootDir = wd
	}
	root, err := filepath.Abs(c.RootDir)
	if err != nil {
		return fmt.Errorf("resolving root dir %s: %w", c.RootDir, err)
	}
	c.RootDir = root

	includes := make([]string, 0, len(c.IncludePaths))
	for _, p := range c.IncludePaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving include path %s: %w", p, err)
		}
		includes = append(includes, abs)
	}
	c.IncludePaths = includes

	exts := make([]string, 0, len(c.IncludeExtensions))
	for _, ext := range c.IncludeExtensions {
		exts = append(exts, strings.TrimPrefix(strings.TrimSpace(ext), "."))
	}
	c.IncludeExtensions = exts
	return nil
}

// WithOverrides applies CLI flag overrides to the config. Known keys are
// mapped to their corresponding struct fields. The modified config is returned
// for convenient chaining.
func (c *Config) WithOverrides(overrides map[string]any) *Config {
	for key, val := range overrides {
		switch key {
		case "rootDir":
			if s, ok := val.(string); ok {
				c.RootDir = s
			}
		case "includePaths":
			// Flag values come first, configured paths after them.
			if paths, ok := val.([]string); ok {
				c.IncludePaths = append(append([]string{}, paths...), c.IncludePaths...)
			}
		case "includeExtensions":
			if exts, ok := val.([]string); ok {
				c.IncludeExtensions = exts
			}
		case "exclude":
			if globs, ok := val.([]string); ok {
				c.Exclude = append(c.Exclude, globs...)
			}
		case "verbosity":
			if n, ok := val.(int); ok {
				c.Verbosity = n
			}
		case "debounce":
			if d, ok := val.(time.Duration); ok {
				c.Debounce = d
			}
		case "command":
			if s, ok := val.(string); ok {
				c.Command = s
			}
		case "output":
			if s, ok := val.(string); ok {
				c.Output = s
			}
		case "liveReload":
			if b, ok := val.(bool); ok {
				c.LiveReload.Enabled = b
			}
		case "liveReloadAddr":
			if s, ok := val.(string); ok {
				c.LiveReload.Addr = s
			}
		}
	}
	return c
}
