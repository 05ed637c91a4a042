// Package config handles the global bib configuration file and its
// environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matsen/bibmerge/internal/citekey"
)

// GlobalConfig represents configuration stored in ~/.config/bib/config.yml.
type GlobalConfig struct {
	Mailto     string        `yaml:"mailto,omitempty"`
	YearPolicy string        `yaml:"year_policy,omitempty"`
	PDFPages   int           `yaml:"pdf_pages,omitempty"`
	QueryChars int           `yaml:"query_chars,omitempty"`
	RateLimit  float64       `yaml:"rate_limit,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	LogLevel   string        `yaml:"log_level,omitempty"`
	PDFReader  string        `yaml:"pdf_reader,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "bib"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	// EnvMailto overrides mailto.
	EnvMailto = "BIB_MAILTO"
	// EnvYearPolicy overrides year_policy.
	EnvYearPolicy = "BIB_YEAR_POLICY"
)

// Defaults for unset keys.
const (
	DefaultPDFPages   = 2
	DefaultQueryChars = 200
	DefaultRateLimit  = 5.0
	DefaultTimeout    = 120 * time.Second
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/bib/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file, applies the
// environment overrides and fills in defaults.
// A missing file is not an error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	var cfg GlobalConfig
	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

func (c *GlobalConfig) applyEnv() {
	if v := os.Getenv(EnvMailto); v != "" {
		c.Mailto = v
	}
	if v := os.Getenv(EnvYearPolicy); v != "" {
		c.YearPolicy = v
	}
}

func (c *GlobalConfig) applyDefaults() {
	if c.PDFPages == 0 {
		c.PDFPages = DefaultPDFPages
	}
	if c.QueryChars == 0 {
		c.QueryChars = DefaultQueryChars
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate checks every key that has a fixed set of values.
func (c *GlobalConfig) Validate() error {
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if err := ValidatePDFReader(c.PDFReader); err != nil {
		return err
	}
	if c.PDFPages < 0 || c.QueryChars < 0 {
		return fmt.Errorf("pdf_pages and query_chars must not be negative")
	}
	return nil
}

// Policy returns the configured year policy. Empty means year only.
func (c *GlobalConfig) Policy() (citekey.YearPolicy, error) {
	if c.YearPolicy == "" {
		return citekey.YearOnly, nil
	}
	p, err := citekey.ParseYearPolicy(c.YearPolicy)
	if err != nil {
		return 0, fmt.Errorf("invalid year_policy: %w", err)
	}
	return p, nil
}

// Level returns the configured log level. Empty means info.
func (c *GlobalConfig) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}
	return level, nil
}
