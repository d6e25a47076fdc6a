package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          int    `yaml:"port"`
	NatsURL       string `yaml:"nats_url"`
	NatsToken     string `yaml:"nats_token"`
	DatabaseURL   string `yaml:"database_url"`
	LogLevel      string `yaml:"log_level"`
	APIToken      string `yaml:"api_token"`
	InboxDir      string `yaml:"inbox_dir"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	PreviewTurns  int    `yaml:"preview_turns"`
	StatePath     string `yaml:"backfill_state"`
}

func defaults() Config {
	return Config{
		Port:          8760,
		NatsURL:       "nats://hermes:4222",
		LogLevel:      "info",
		MaxConcurrent: 2,
		PreviewTurns:  5,
		StatePath:     "~/.scribe/backfill-state.json",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// SCRIBE_CONFIG (if set), then environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("SCRIBE_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envInt("SCRIBE_PORT", cfg.Port)
	cfg.NatsURL = envStr("NATS_URL", cfg.NatsURL)
	cfg.NatsToken = envStr("NATS_TOKEN", cfg.NatsToken)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.APIToken = envStr("SCRIBE_API_TOKEN", cfg.APIToken)
	cfg.InboxDir = envStr("SCRIBE_INBOX_DIR", cfg.InboxDir)
	cfg.MaxConcurrent = envInt("SCRIBE_MAX_CONCURRENT", cfg.MaxConcurrent)
	cfg.PreviewTurns = envInt("SCRIBE_PREVIEW_TURNS", cfg.PreviewTurns)
	cfg.StatePath = envStr("SCRIBE_BACKFILL_STATE", cfg.StatePath)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	if c.PreviewTurns <= 0 {
		c.PreviewTurns = 5
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
