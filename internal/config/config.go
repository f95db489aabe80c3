package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Publish  PublishConfig  `yaml:"publish"`
	Sources  SourcesConfig  `yaml:"sources"`
	Filter   FilterConfig   `yaml:"filter"`
	LogLevel string         `yaml:"log_level"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// TelegramConfig configures the bot and the target forum chat.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// RefreshConfig configures the discovery cycle.
type RefreshConfig struct {
	Interval       string `yaml:"interval"`
	MaxAgeDays     int    `yaml:"max_age_days"`
	ScoreThreshold int    `yaml:"score_threshold"`
	SeenTTLDays    int    `yaml:"seen_ttl_days"`
	QueueMax       int    `yaml:"queue_max"`
	EnqueuePerRun  int    `yaml:"enqueue_per_run"`
	MaxCandidates  int    `yaml:"max_candidates"`
	MaxQueries     int    `yaml:"max_queries"`
}

// ParseInterval returns the refresh interval as a duration.
func (r RefreshConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(r.Interval)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// PublishConfig configures the publish cycle. DryRun defaults to true;
// live posting additionally requires the Apply gate.
type PublishConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
	DryRun   bool   `yaml:"dry_run"`
	Apply    bool   `yaml:"apply"`
}

// ParseInterval returns the publish interval as a duration.
func (p PublishConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(p.Interval)
	if err != nil {
		return 3 * time.Hour
	}
	return d
}

// SourcesConfig holds configuration for all publication providers.
type SourcesConfig struct {
	CyberLeninka CyberLeninkaConfig `yaml:"cyberleninka"`
	EuropePMC    EuropePMCConfig    `yaml:"europepmc"`
	RSS          RSSConfig          `yaml:"rss"`
}

// CyberLeninkaConfig for the CyberLeninka search provider.
type CyberLeninkaConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// EuropePMCConfig for the Europe PMC REST provider.
type EuropePMCConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

// RSSConfig for the RSS feed provider.
type RSSConfig struct {
	Enabled bool       `yaml:"enabled"`
	Feeds   []FeedItem `yaml:"feeds"`
}

// FeedItem is a single RSS feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// FilterConfig configures relevance term sets.
type FilterConfig struct {
	IncludeTerms []string `yaml:"include_terms"`
	ExcludeTerms []string `yaml:"exclude_terms"`
}

// envOverrides mirrors the settable subset of Config for environment
// variables with the GEOPRESS prefix. Pointer fields distinguish unset
// from zero.
type envOverrides struct {
	DBPath         *string `envconfig:"DB_PATH"`
	TelegramToken  *string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID *int64  `envconfig:"TELEGRAM_CHAT_ID"`
	DryRun         *bool   `envconfig:"DRY_RUN"`
	Apply          *bool   `envconfig:"APPLY"`
	LogLevel       *string `envconfig:"LOG_LEVEL"`
}

// Default returns a Config with production defaults. Publishing starts
// in dry-run.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./geopress.db"},
		Refresh: RefreshConfig{
			Interval:       "6h",
			MaxAgeDays:     120,
			ScoreThreshold: 5,
			SeenTTLDays:    30,
			QueueMax:       80,
			EnqueuePerRun:  30,
			MaxCandidates:  200,
			MaxQueries:     12,
		},
		Publish: PublishConfig{
			Enabled:  true,
			Interval: "3h",
			DryRun:   true,
		},
		Sources: SourcesConfig{
			CyberLeninka: CyberLeninkaConfig{
				Enabled: true,
				BaseURL: "https://cyberleninka.ru",
			},
			EuropePMC: EuropePMCConfig{
				Enabled: true,
				BaseURL: "https://www.ebi.ac.uk/europepmc/webservices/rest",
			},
			RSS: RSSConfig{Enabled: false},
		},
		Filter: FilterConfig{
			IncludeTerms: []string{
				"минеральн", "термальн", "гидрогеолог", "бальнео", "курорт",
				"источник", "скважин", "нарзан", "mineral water", "thermal",
				"balneo", "hydrogeolog", "hot spring",
			},
			ExcludeTerms: []string{
				"нефт", "газоконденсат", "petroleum", "oil field",
			},
		},
		LogLevel: "info",
	}
}

// Load reads configuration from a YAML file (when path is non-empty)
// and applies GEOPRESS_* environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	var env envOverrides
	if err := envconfig.Process("GEOPRESS", &env); err != nil {
		return nil, fmt.Errorf("read env overrides: %w", err)
	}
	applyEnvOverrides(cfg, &env)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config, env *envOverrides) {
	if env.DBPath != nil {
		cfg.Database.Path = *env.DBPath
	}
	if env.TelegramToken != nil {
		cfg.Telegram.Token = *env.TelegramToken
	}
	if env.TelegramChatID != nil {
		cfg.Telegram.ChatID = *env.TelegramChatID
	}
	if env.DryRun != nil {
		cfg.Publish.DryRun = *env.DryRun
	}
	if env.Apply != nil {
		cfg.Publish.Apply = *env.Apply
	}
	if env.LogLevel != nil {
		cfg.LogLevel = *env.LogLevel
	}
}

// Validate enforces startup preconditions. Live publishing (publish
// enabled with dry-run off) requires the explicit apply gate; without
// it the process must refuse to start.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram chat_id is required")
	}
	if c.Publish.Enabled && !c.Publish.DryRun {
		if !c.Publish.Apply {
			return fmt.Errorf("publishing with dry_run off requires the apply flag")
		}
		if c.Telegram.Token == "" {
			return fmt.Errorf("telegram token is required for live publishing")
		}
	}
	return nil
}
