package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://scp-wiki.wikidot.com/", cfg.Scraper.BaseURL)
	assert.Equal(t, 0, cfg.Scraper.StartNumber)
	assert.Equal(t, 7000, cfg.Scraper.EndNumber)
	assert.Equal(t, "output/extracted-styles.json", cfg.Scraper.CheckpointPath)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 2 * time.Second, 6 * time.Second}, cfg.Logic.SettleDelays())
	assert.Equal(t, 2*time.Second, cfg.Logic.RateLimit())
	assert.Empty(t, cfg.DB.Connection)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
scraper:
  base_url: "http://localhost:8080/"
  start_number: 5
  end_number: 10
  checkpoint_path: "tmp/out.json"
logic:
  settle_delays_ms: [0, 10]
crom:
  retries: 3
  sites: ["scp-wiki", "scp-int"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/", cfg.Scraper.BaseURL)
	assert.Equal(t, 5, cfg.Scraper.StartNumber)
	assert.Equal(t, 10, cfg.Scraper.EndNumber)
	assert.Equal(t, []int{0, 10}, cfg.Logic.SettleDelaysMS)
	assert.Equal(t, []string{"http://scp-wiki.wikidot.com/", "http://scp-int.wikidot.com/"}, cfg.Crom.CromBaseURLs())
	// untouched sections keep their defaults
	assert.Equal(t, 2000, cfg.Logic.RateLimitMS)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("STYLE_SPIDER_SCRAPER_END_NUMBER", "42")
	t.Setenv("STYLE_SPIDER_LOGIC_SETTLE_DELAYS_MS", "1,2,3,4")
	t.Setenv("STYLE_SPIDER_DB_CONNECTION", "mongodb://localhost:27017")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Scraper.EndNumber)
	assert.Equal(t, []int{1, 2, 3, 4}, cfg.Logic.SettleDelaysMS)
	assert.Equal(t, "mongodb://localhost:27017", cfg.DB.Connection)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scraper: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SpiderConfig)
	}{
		{"empty delays", func(c *SpiderConfig) { c.Logic.SettleDelaysMS = nil }},
		{"negative delay", func(c *SpiderConfig) { c.Logic.SettleDelaysMS = []int{-1} }},
		{"inverted range", func(c *SpiderConfig) { c.Scraper.StartNumber, c.Scraper.EndNumber = 10, 5 }},
		{"no base url", func(c *SpiderConfig) { c.Scraper.BaseURL = "" }},
		{"no checkpoint", func(c *SpiderConfig) { c.Scraper.CheckpointPath = "" }},
		{"no retries", func(c *SpiderConfig) { c.Crom.Retries = 0 }},
	}

	require.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
