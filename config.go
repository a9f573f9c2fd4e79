package lifewatch

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level lifewatch configuration.
type Config struct {
	// Keyword is the watched trigger word. Default: "gemini".
	Keyword string `yaml:"keyword"`
	// StabilityThreshold is the number of consecutive unchanged cycles
	// before an entry is considered settled. Default: 3.
	StabilityThreshold int `yaml:"stability_threshold"`

	Feed       FeedConfig       `yaml:"feed"`
	Backoff    BackoffConfig    `yaml:"backoff"`
	Notify     NotifyConfig     `yaml:"notify"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Journal    JournalConfig    `yaml:"journal"`
	Status     StatusConfig     `yaml:"status"`
}

// FeedConfig configures the lifelog API client.
type FeedConfig struct {
	URL      string        `yaml:"url"`
	APIKey   string        `yaml:"api_key"` // ${ENV_VAR} expanded at request time
	Timezone string        `yaml:"timezone"`
	Limit    int           `yaml:"limit"`
	Timeout  time.Duration `yaml:"timeout"`
}

// BackoffConfig bounds the fetch failure retry delay.
type BackoffConfig struct {
	Initial time.Duration `yaml:"initial"`
	Max     time.Duration `yaml:"max"`
}

// NotifyConfig configures the notification sink. An empty URL disables
// notifications.
type NotifyConfig struct {
	URL      string `yaml:"url"`
	MaxBytes int    `yaml:"max_bytes"`
}

// AnalysisConfig configures the external analysis CLI.
type AnalysisConfig struct {
	Command         string        `yaml:"command"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxContextChars int           `yaml:"max_context_chars"`
}

// TranscriptConfig configures the daily transcript tree.
type TranscriptConfig struct {
	Dir string `yaml:"dir"`
}

// JournalConfig configures the optional SQLite cycle journal. An empty path
// disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// StatusConfig configures the optional HTTP status endpoint. An empty addr
// disables it.
type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Keyword == "" {
		c.Keyword = "gemini"
	}
	if c.StabilityThreshold <= 0 {
		c.StabilityThreshold = 3
	}
	if c.Feed.URL == "" {
		c.Feed.URL = "https://api.limitless.ai/v1/lifelogs"
	}
	if c.Feed.Timezone == "" {
		c.Feed.Timezone = "US/Eastern"
	}
	if c.Feed.Limit <= 0 {
		c.Feed.Limit = 1000
	}
	if c.Feed.Timeout <= 0 {
		c.Feed.Timeout = 30 * time.Second
	}
	if c.Backoff.Initial <= 0 {
		c.Backoff.Initial = 5 * time.Second
	}
	if c.Backoff.Max <= 0 {
		c.Backoff.Max = 5 * time.Minute
	}
	if c.Notify.MaxBytes <= 0 {
		c.Notify.MaxBytes = 4000
	}
	if c.Analysis.Command == "" {
		c.Analysis.Command = "gemini"
	}
	if c.Analysis.Timeout <= 0 {
		c.Analysis.Timeout = 60 * time.Second
	}
	if c.Analysis.MaxContextChars <= 0 {
		c.Analysis.MaxContextChars = 96000
	}
	if c.Transcript.Dir == "" {
		c.Transcript.Dir = "logs"
	}
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
