package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/witslabs/quizwall/go/internal/schedule"
)

// Config is the YAML-file side of configuration. Connection settings come
// from the environment; timing and tuning live here.
type Config struct {
	Schedule struct {
		AnswerSeconds int `yaml:"answer_seconds"`
		RestSeconds   int `yaml:"rest_seconds"`
	} `yaml:"schedule"`

	Chain struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		TokenDecimals  int32  `yaml:"token_decimals"`
	} `yaml:"chain"`

	Gateway struct {
		PingIntervalSeconds int   `yaml:"ping_interval_seconds"`
		ReadTimeoutSeconds  int   `yaml:"read_timeout_seconds"`
		MaxMessageSize      int64 `yaml:"max_message_size"`
	} `yaml:"gateway"`
}

// Windows returns the configured question timing, falling back to the
// production defaults when the file leaves them out.
func (c *Config) Windows() schedule.Windows {
	w := schedule.DefaultWindows()
	if c.Schedule.AnswerSeconds > 0 {
		w.Answer = time.Duration(c.Schedule.AnswerSeconds) * time.Second
	}
	if c.Schedule.RestSeconds > 0 {
		w.Rest = time.Duration(c.Schedule.RestSeconds) * time.Second
	}
	return w
}

func loadConfig(path string) (*Config, error) {
	var config Config
	if path == "" {
		return &config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
