package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

// DefaultPath is where every binary looks for its configuration.
const DefaultPath = "config.yaml"

type DBConfig struct {
	Connection  string `yaml:"connection" env:"CONNECTION"`
	Database    string `yaml:"database" env:"DATABASE"`
	Collections struct {
		Documents     string `yaml:"documents" env:"DOCUMENTS"`
		SpiderHistory string `yaml:"spider_history" env:"SPIDER_HISTORY"`
	} `yaml:"collections" envPrefix:"COLLECTION_"`
}

type LogicConfig struct {
	SettleDelaysMS []int  `yaml:"settle_delays_ms" env:"SETTLE_DELAYS_MS" envSeparator:","`
	RateLimitMS    int    `yaml:"rate_limit_ms" env:"RATE_LIMIT_MS"`
	TimeoutSec     int    `yaml:"timeout_sec" env:"TIMEOUT_SEC"`
	UserAgent      string `yaml:"user_agent" env:"USER_AGENT"`
}

type ScraperConfig struct {
	BaseURL        string `yaml:"base_url" env:"BASE_URL"`
	StartNumber    int    `yaml:"start_number" env:"START_NUMBER"`
	EndNumber      int    `yaml:"end_number" env:"END_NUMBER"`
	CheckpointPath string `yaml:"checkpoint_path" env:"CHECKPOINT_PATH"`
	Headless       bool   `yaml:"headless" env:"HEADLESS"`
	Stealth        bool   `yaml:"stealth" env:"STEALTH"`
	RemoteURL      string `yaml:"remote_url" env:"REMOTE_URL"`
	RespectRobots  bool   `yaml:"respect_robots" env:"RESPECT_ROBOTS"`
}

type CromConfig struct {
	Endpoint     string   `yaml:"endpoint" env:"ENDPOINT"`
	Sites        []string `yaml:"sites" env:"SITES" envSeparator:","`
	Retries      int      `yaml:"retries" env:"RETRIES"`
	DatabasePath string   `yaml:"database_path" env:"DATABASE_PATH"`
}

type ReportConfig struct {
	ResultsPath string `yaml:"results_path" env:"RESULTS_PATH"`
	OutputDir   string `yaml:"output_dir" env:"OUTPUT_DIR"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type SpiderConfig struct {
	DB      DBConfig      `yaml:"db" envPrefix:"DB_"`
	Logic   LogicConfig   `yaml:"logic" envPrefix:"LOGIC_"`
	Scraper ScraperConfig `yaml:"scraper" envPrefix:"SCRAPER_"`
	Crom    CromConfig    `yaml:"crom" envPrefix:"CROM_"`
	Report  ReportConfig  `yaml:"report" envPrefix:"REPORT_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

// Default returns the configuration the tools run with when no file exists.
func Default() *SpiderConfig {
	cfg := &SpiderConfig{
		Logic: LogicConfig{
			SettleDelaysMS: []int{500, 2000, 6000},
			RateLimitMS:    2000,
			TimeoutSec:     60,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		},
		Scraper: ScraperConfig{
			BaseURL:        "https://scp-wiki.wikidot.com/",
			StartNumber:    0,
			EndNumber:      7000,
			CheckpointPath: "output/extracted-styles.json",
			Headless:       true,
			RespectRobots:  true,
		},
		Crom: CromConfig{
			Endpoint:     "https://api.crom.avn.sh/graphql",
			Sites:        []string{"scp-wiki"},
			Retries:      3,
			DatabasePath: "output/crawler.db",
		},
		Report: ReportConfig{
			ResultsPath: "output/results.json",
			OutputDir:   "output",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
	cfg.DB.Database = "style_spider"
	cfg.DB.Collections.Documents = "styles"
	cfg.DB.Collections.SpiderHistory = "spider_history"
	return cfg
}

// LoadConfig reads path over the defaults, then applies STYLE_SPIDER_*
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*SpiderConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "STYLE_SPIDER_"}); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *SpiderConfig) Validate() error {
	if len(c.Logic.SettleDelaysMS) == 0 {
		return errors.New("config: logic.settle_delays_ms must not be empty")
	}
	for _, d := range c.Logic.SettleDelaysMS {
		if d < 0 {
			return fmt.Errorf("config: negative settle delay %d", d)
		}
	}
	if c.Logic.RateLimitMS < 0 {
		return fmt.Errorf("config: negative rate limit %d", c.Logic.RateLimitMS)
	}
	if c.Scraper.StartNumber < 0 || c.Scraper.EndNumber < c.Scraper.StartNumber {
		return fmt.Errorf("config: invalid scraper range [%d, %d)", c.Scraper.StartNumber, c.Scraper.EndNumber)
	}
	if c.Scraper.BaseURL == "" {
		return errors.New("config: scraper.base_url is required")
	}
	if c.Scraper.CheckpointPath == "" {
		return errors.New("config: scraper.checkpoint_path is required")
	}
	if c.Crom.Retries <= 0 {
		return fmt.Errorf("config: crom.retries must be positive, got %d", c.Crom.Retries)
	}
	return nil
}

func (l LogicConfig) SettleDelays() []time.Duration {
	delays := make([]time.Duration, len(l.SettleDelaysMS))
	for i, ms := range l.SettleDelaysMS {
		delays[i] = time.Duration(ms) * time.Millisecond
	}
	return delays
}

func (l LogicConfig) RateLimit() time.Duration {
	return time.Duration(l.RateLimitMS) * time.Millisecond
}

func (l LogicConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSec) * time.Second
}

// CromBaseURLs maps site names to the base URLs Crom filters on.
func (c CromConfig) CromBaseURLs() []string {
	urls := make([]string, len(c.Sites))
	for i, site := range c.Sites {
		urls[i] = fmt.Sprintf("http://%s.wikidot.com/", site)
	}
	return urls
}
