package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matsen/bibmerge/internal/citekey"
)

// withConfigHome points XDG_CONFIG_HOME at a fresh directory and clears the
// environment overrides. content, if non-empty, is written as config.yml.
func withConfigHome(t *testing.T, content string) {
	t.Helper()
	ResetGlobalConfigCache()
	t.Cleanup(ResetGlobalConfigCache)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv(EnvMailto, "")
	t.Setenv(EnvYearPolicy, "")

	if content == "" {
		return
	}
	configDir := filepath.Join(tmpDir, GlobalConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, GlobalConfigFile), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	want := "/custom/config/bib/config.yml"
	if path := GlobalConfigPath(); path != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", path, want)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	want = filepath.Join(home, ".config", "bib", "config.yml")
	if path := GlobalConfigPath(); path != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", path, want)
	}
}

func TestLoadGlobalConfig_NotFound(t *testing.T) {
	withConfigHome(t, "")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}

	want := GlobalConfig{
		PDFPages:   DefaultPDFPages,
		QueryChars: DefaultQueryChars,
		RateLimit:  DefaultRateLimit,
		Timeout:    DefaultTimeout,
	}
	if *cfg != want {
		t.Errorf("LoadGlobalConfig() = %+v, want defaults %+v", *cfg, want)
	}
}

func TestLoadGlobalConfig_Valid(t *testing.T) {
	withConfigHome(t, `
mailto: someone@example.org
year_policy: urldate
pdf_pages: 3
query_chars: 150
rate_limit: 1.5
timeout: 30s
log_level: debug
pdf_reader: zathura
`)

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}

	want := GlobalConfig{
		Mailto:     "someone@example.org",
		YearPolicy: "urldate",
		PDFPages:   3,
		QueryChars: 150,
		RateLimit:  1.5,
		Timeout:    30 * time.Second,
		LogLevel:   "debug",
		PDFReader:  "zathura",
	}
	if *cfg != want {
		t.Errorf("LoadGlobalConfig() = %+v, want %+v", *cfg, want)
	}

	policy, _ := cfg.Policy()
	if policy != citekey.URLDateFirst {
		t.Errorf("Policy() = %v, want urldate", policy)
	}
	level, _ := cfg.Level()
	if level != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", level)
	}
}

func TestLoadGlobalConfig_EnvOverrides(t *testing.T) {
	withConfigHome(t, "mailto: file@example.org\nyear_policy: year\n")
	t.Setenv(EnvMailto, "env@example.org")
	t.Setenv(EnvYearPolicy, "urldate")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if cfg.Mailto != "env@example.org" || cfg.YearPolicy != "urldate" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadGlobalConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "mailto: [unclosed"},
		{"bad year policy", "year_policy: month"},
		{"bad log level", "log_level: chatty"},
		{"bad reader", "pdf_reader: adobe"},
		{"bad timeout", "timeout: soon"},
		{"negative pages", "pdf_pages: -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withConfigHome(t, tt.content)
			if _, err := LoadGlobalConfig(); err == nil {
				t.Errorf("LoadGlobalConfig() expected error for %q", tt.content)
			}
		})
	}
}

func TestLoadGlobalConfig_Caching(t *testing.T) {
	withConfigHome(t, "mailto: first@example.org\n")

	cfg1, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}

	path := GlobalConfigPath()
	if err := os.WriteFile(path, []byte("mailto: second@example.org\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg2, _ := LoadGlobalConfig()
	if cfg1 != cfg2 || cfg2.Mailto != "first@example.org" {
		t.Error("LoadGlobalConfig() should return the cached config")
	}

	ResetGlobalConfigCache()
	cfg3, _ := LoadGlobalConfig()
	if cfg3.Mailto != "second@example.org" {
		t.Errorf("after reset Mailto = %q, want second@example.org", cfg3.Mailto)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := GlobalConfig{LogLevel: tt.value}
			got, err := cfg.Level()
			if err != nil || got != tt.want {
				t.Errorf("Level() = %v, %v; want %v", got, err, tt.want)
			}
		})
	}
}
