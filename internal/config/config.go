package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"autogram/internal/credentials"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const mbToBytes = 1024 * 1024

// Config is the immutable startup configuration. It is constructed once by
// Load and passed into component constructors; nothing reads ambient state
// after startup.
type Config struct {
	MediaDir string `yaml:"media_dir"`

	MaxImageMB int64 `yaml:"max_image_mb"`
	MaxVideoMB int64 `yaml:"max_video_mb"`

	MinDelayMinutes int `yaml:"min_delay_minutes"`
	MaxDelayMinutes int `yaml:"max_delay_minutes"`

	ProcessingDelayMinMinutes int `yaml:"processing_delay_min_minutes"`
	ProcessingDelayMaxMinutes int `yaml:"processing_delay_max_minutes"`

	RefreshMarginDays int `yaml:"refresh_margin_days"`

	HashtagsFile string `yaml:"hashtags_file"`
	HashtagCount int    `yaml:"hashtag_count"`

	CredentialFile string `yaml:"credential_file"`
	ScheduleFile   string `yaml:"schedule_file"`

	LogLevel string `yaml:"log_level"`

	Staging StagingConfig `yaml:"staging"`
	Graph   GraphConfig   `yaml:"graph"`
}

type StagingConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user" env:"STAGING_USER"`
	Password      string `yaml:"password" env:"STAGING_PASSWORD"`
	RemoteDir     string `yaml:"remote_dir"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type GraphConfig struct {
	BaseURL   string `yaml:"base_url"`
	AppID     string `yaml:"app_id" env:"GRAPH_APP_ID"`
	AppSecret string `yaml:"app_secret" env:"GRAPH_APP_SECRET"`
	AccountID string `yaml:"account_id"`
}

// Load reads the YAML config file, overlays secrets from the environment
// (a .env file is honored when present), applies defaults, and validates.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if c.Staging.User == "" {
		c.Staging.User = os.Getenv("STAGING_USER")
	}
	if c.Staging.Password == "" {
		c.Staging.Password = os.Getenv("STAGING_PASSWORD")
	}
	if c.Graph.AppID == "" {
		c.Graph.AppID = os.Getenv("GRAPH_APP_ID")
	}
	if c.Graph.AppSecret == "" {
		c.Graph.AppSecret = os.Getenv("GRAPH_APP_SECRET")
	}
}

func (c *Config) applyDefaults() {
	if c.MaxImageMB == 0 {
		c.MaxImageMB = 8
	}
	if c.MaxVideoMB == 0 {
		c.MaxVideoMB = 100
	}
	if c.MinDelayMinutes == 0 {
		c.MinDelayMinutes = 150
	}
	if c.MaxDelayMinutes == 0 {
		c.MaxDelayMinutes = 300
	}
	if c.ProcessingDelayMinMinutes == 0 {
		c.ProcessingDelayMinMinutes = 1
	}
	if c.ProcessingDelayMaxMinutes == 0 {
		c.ProcessingDelayMaxMinutes = 3
	}
	if c.RefreshMarginDays == 0 {
		c.RefreshMarginDays = 7
	}
	if c.HashtagsFile == "" {
		c.HashtagsFile = "hashtags.txt"
	}
	if c.HashtagCount == 0 {
		c.HashtagCount = 5
	}
	if c.CredentialFile == "" {
		c.CredentialFile = credentials.DefaultPath()
	}
	if c.ScheduleFile == "" && c.CredentialFile != "" {
		c.ScheduleFile = filepath.Join(filepath.Dir(c.CredentialFile), "schedule.json")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if c.MediaDir == "" {
		return fmt.Errorf("media_dir is required")
	}
	if c.MinDelayMinutes > c.MaxDelayMinutes {
		return fmt.Errorf("min_delay_minutes (%d) must not exceed max_delay_minutes (%d)", c.MinDelayMinutes, c.MaxDelayMinutes)
	}
	if c.Staging.Host == "" {
		return fmt.Errorf("staging.host is required")
	}
	if c.Staging.User == "" {
		return fmt.Errorf("staging user is required (set STAGING_USER or staging.user)")
	}
	if c.Staging.Password == "" {
		return fmt.Errorf("staging password is required (set STAGING_PASSWORD or staging.password)")
	}
	if c.Staging.PublicBaseURL == "" {
		return fmt.Errorf("staging.public_base_url is required")
	}
	if c.Graph.AppID == "" {
		return fmt.Errorf("graph app ID is required (set GRAPH_APP_ID or graph.app_id)")
	}
	if c.Graph.AppSecret == "" {
		return fmt.Errorf("graph app secret is required (set GRAPH_APP_SECRET or graph.app_secret)")
	}
	if c.Graph.AccountID == "" {
		return fmt.Errorf("graph.account_id is required")
	}
	if c.CredentialFile == "" {
		return fmt.Errorf("credential_file is required and no default path could be resolved")
	}
	return nil
}

func (c *Config) MaxImageBytes() int64 { return c.MaxImageMB * mbToBytes }
func (c *Config) MaxVideoBytes() int64 { return c.MaxVideoMB * mbToBytes }

func (c *Config) MinDelay() time.Duration {
	return time.Duration(c.MinDelayMinutes) * time.Minute
}

func (c *Config) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMinutes) * time.Minute
}

func (c *Config) ProcessingDelayMin() time.Duration {
	return time.Duration(c.ProcessingDelayMinMinutes) * time.Minute
}

func (c *Config) ProcessingDelayMax() time.Duration {
	return time.Duration(c.ProcessingDelayMaxMinutes) * time.Minute
}

func (c *Config) RefreshMargin() time.Duration {
	return time.Duration(c.RefreshMarginDays) * 24 * time.Hour
}
