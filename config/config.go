package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	HFAPIToken        string   `yaml:"hf_api_token"`
	HFModel           string   `yaml:"hf_model"`
	HFBaseURL         string   `yaml:"hf_base_url"`
	YouTubeAPIKey     string   `yaml:"youtube_api_key"`
	YouTubeBaseURL    string   `yaml:"youtube_base_url"`
	OpenAIAPIKey      string   `yaml:"openai_api_key"`
	OpenAIModel       string   `yaml:"openai_model"`
	OpenAIBaseURL     string   `yaml:"openai_base_url"`
	Labels            []string `yaml:"labels"`
	FetchTimeoutSecs  int      `yaml:"fetch_timeout_secs"`
	MaxContentLength  int      `yaml:"max_content_length"`
	Concurrency       int      `yaml:"concurrency"`
	ClassifierRPS     float64  `yaml:"classifier_rps"`
	ClassifierRetries int      `yaml:"classifier_retries"`
	SumTolerance      float64  `yaml:"sum_tolerance"`
	TelegramToken     string   `yaml:"telegram_token"`
	ChatID            int64    `yaml:"chat_id"`
	RefreshTime       string   `yaml:"refresh_time"`
	Timezone          string   `yaml:"timezone"`
	DBPath            string   `yaml:"db_path"`
	LogLevel          string   `yaml:"log_level"`
	Color             string   `yaml:"color"`
}

// refreshTimeRegex validates HH:MM format with proper ranges.
var refreshTimeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// DefaultLabels is the candidate label set used when none is configured.
var DefaultLabels = []string{"Technology", "News", "Video Games", "Entertainment", "Science", "Business"}

// Load reads configuration from a YAML file and applies defaults. A missing
// file is not an error; defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("INTEREST_PROFILER_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// ValidateBot checks the settings only the chat bot needs.
func (c *Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("telegram_token is required")
	}
	return nil
}

// SlogLevel maps log_level onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FetchTimeout returns the per-request HTTP timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

func applyDefaults(cfg *Config) {
	if cfg.HFModel == "" {
		cfg.HFModel = "facebook/bart-large-mnli"
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	if len(cfg.Labels) == 0 {
		cfg.Labels = append([]string(nil), DefaultLabels...)
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 10
	}
	if cfg.MaxContentLength == 0 {
		cfg.MaxContentLength = 8000
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	if cfg.ClassifierRPS == 0 {
		cfg.ClassifierRPS = 2
	}
	if cfg.ClassifierRetries == 0 {
		cfg.ClassifierRetries = 3
	}
	if cfg.SumTolerance == 0 {
		cfg.SumTolerance = 0.05
	}
	if cfg.RefreshTime == "" {
		cfg.RefreshTime = "09:00"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./interest-profiler.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Color == "" {
		cfg.Color = "auto"
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	overrides := map[string]*string{
		"HF_API_TOKEN":         &cfg.HFAPIToken,
		"YOUTUBE_API_KEY":      &cfg.YouTubeAPIKey,
		"OPENAI_API_KEY":       &cfg.OpenAIAPIKey,
		"TELEGRAM_TOKEN":       &cfg.TelegramToken,
		"INTEREST_PROFILER_DB": &cfg.DBPath,
	}
	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}

func validate(cfg *Config) error {
	if cfg.HFAPIToken == "" {
		return fmt.Errorf("hf_api_token is required")
	}
	if !refreshTimeRegex.MatchString(cfg.RefreshTime) {
		return fmt.Errorf("refresh_time must be in HH:MM format (00:00-23:59), got %q", cfg.RefreshTime)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.Concurrency < 0 {
		return fmt.Errorf("concurrency must be positive, got %d", cfg.Concurrency)
	}
	if cfg.SumTolerance < 0 || cfg.SumTolerance >= 1 {
		return fmt.Errorf("sum_tolerance must be in [0, 1), got %v", cfg.SumTolerance)
	}
	seen := make(map[string]bool, len(cfg.Labels))
	for _, l := range cfg.Labels {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("labels must not be blank")
		}
		if seen[l] {
			return fmt.Errorf("duplicate label %q", l)
		}
		seen[l] = true
	}
	switch cfg.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("color must be auto, always or never, got %q", cfg.Color)
	}
	return nil
}
