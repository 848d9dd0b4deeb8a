package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OUTPUT_DIR", "GITHUB_WORKSPACE", "BROWSER_HEADLESS", "BROWSER_TIMEOUT",
		"SCRAPER_MAX_PAGES", "SCRAPER_SLUG_MAX_LEN", "SCRAPER_STORE_DELAY_MIN",
		"SCRAPER_STORE_DELAY_MAX", "DOWNLOAD_RETRIES", "SERVER_PORT", "CATALOG_ENABLED",
		"DB_HOST", "LOG_LEVEL", "LOG_FORMAT", "REDIS_STREAM",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	abs, _ := filepath.Abs("Encartes")
	assert.Equal(t, abs, cfg.Output.Root)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, "pt-BR", cfg.Browser.Locale)
	assert.Equal(t, "America/Sao_Paulo", cfg.Browser.TimezoneID)
	assert.Equal(t, 40, cfg.Scraper.MaxPages)
	assert.Equal(t, 80, cfg.Scraper.SlugMaxLen)
	assert.Equal(t, 2, cfg.Download.Retries)
	assert.Equal(t, "stream:encartes", cfg.Redis.Stream)
	assert.Equal(t, int64(10000), cfg.Redis.StreamMax)
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOutputRootPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	other := t.TempDir()

	t.Setenv("GITHUB_WORKSPACE", other)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, other, cfg.Output.Root)

	t.Setenv("OUTPUT_DIR", dir)
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Output.Root)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("SCRAPER_MAX_PAGES", "12")
	t.Setenv("BROWSER_TIMEOUT", "45s")
	t.Setenv("SERVER_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 12, cfg.Scraper.MaxPages)
	assert.Equal(t, 45*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, 8085, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Output:  OutputConfig{Root: "/tmp/encartes"},
			Scraper: ScraperConfig{MaxPages: 40, SlugMaxLen: 80, StoreDelayMin: time.Second, StoreDelayMax: 3 * time.Second},
			Server:  ServerConfig{Port: 8085},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no root", func(c *Config) { c.Output.Root = "" }, "output root"},
		{"zero pages", func(c *Config) { c.Scraper.MaxPages = 0 }, "SCRAPER_MAX_PAGES"},
		{"short slug", func(c *Config) { c.Scraper.SlugMaxLen = 3 }, "SCRAPER_SLUG_MAX_LEN"},
		{"delay order", func(c *Config) { c.Scraper.StoreDelayMin = 5 * time.Second }, "SCRAPER_STORE_DELAY_MIN"},
		{"negative retries", func(c *Config) { c.Download.Retries = -1 }, "DOWNLOAD_RETRIES"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"catalog without host", func(c *Config) { c.Database.Enabled = true }, "DB_HOST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
