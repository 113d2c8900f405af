// Package config loads pennybot configuration from an optional YAML file
// with environment variable overrides. Env always wins so deployments can
// keep secrets out of the file.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	Slack    SlackConfig    `yaml:"slack"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Database DatabaseConfig `yaml:"database"`
	Tasks    TasksConfig    `yaml:"tasks"`
	Log      LogConfig      `yaml:"log"`
}

// SlackConfig holds the workspace credentials.
type SlackConfig struct {
	BotToken      string `yaml:"bot_token" env:"PENNY_SLACK_BOT_TOKEN"`
	SigningSecret string `yaml:"signing_secret" env:"PENNY_SLACK_SIGNING_SECRET"`
	BotUserID     string `yaml:"bot_user_id" env:"PENNY_SLACK_BOT_USER_ID"`
}

// GatewayConfig holds the inbound HTTP listener settings.
type GatewayConfig struct {
	Host string `yaml:"host" env:"PENNY_GATEWAY_HOST"`
	Port int    `yaml:"port" env:"PENNY_GATEWAY_PORT"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"PENNY_DB_PATH"`
}

// TasksConfig tunes the deferred task queue.
type TasksConfig struct {
	Workers        int `yaml:"workers" env:"PENNY_TASK_WORKERS"`
	MaxRetries     int `yaml:"max_retries" env:"PENNY_TASK_MAX_RETRIES"`
	BackoffSeconds int `yaml:"backoff_seconds" env:"PENNY_TASK_BACKOFF_SECONDS"`
}

// LogConfig controls logger output.
type LogConfig struct {
	Level  string `yaml:"level" env:"PENNY_LOG_LEVEL"`
	Format string `yaml:"format" env:"PENNY_LOG_FORMAT"`
}

// Defaults returns the baseline configuration used when neither the file nor
// the environment overrides a value.
func Defaults() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "pennybot.db",
		},
		Tasks: TasksConfig{
			Workers:        4,
			MaxRetries:     3,
			BackoffSeconds: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if it
// exists), then environment variables. A missing file is not an error; an
// unreadable or malformed one is.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields the process cannot run without.
func (c *Config) Validate() error {
	if c.Slack.BotToken == "" {
		return fmt.Errorf("slack.bot_token is required")
	}
	if c.Slack.SigningSecret == "" {
		return fmt.Errorf("slack.signing_secret is required")
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port %d out of range", c.Gateway.Port)
	}
	return nil
}

// Addr returns the listener address for the gateway.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}
