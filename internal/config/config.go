// Package config handles coworker configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./coworker.yaml, ~/.config/coworker/config.yaml, /etc/coworker/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"coworker.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "coworker", "config.yaml"))
	}

	paths = append(paths, "/etc/coworker/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all coworker configuration.
type Config struct {
	Slack    SlackConfig    `yaml:"slack"`
	Model    ModelConfig    `yaml:"model"`
	GitHub   GitHubConfig   `yaml:"github"`
	Feedback FeedbackConfig `yaml:"feedback"`
	LogLevel string         `yaml:"log_level"`
}

// SlackConfig defines the Slack workspace connection.
type SlackConfig struct {
	// AppToken is the xapp- token used to open a Socket Mode connection.
	AppToken string `yaml:"app_token"`
	// BotToken is the xoxb- token used for Web API calls.
	BotToken string `yaml:"bot_token"`
	// Channels lists the channel IDs the agent responds in. Messages in
	// other channels are ignored. Empty means respond everywhere.
	Channels []string `yaml:"channels"`
	// ContextLimit caps the assembled conversation window, trigger
	// message included (default 11).
	ContextLimit int `yaml:"context_limit"`
}

// ModelConfig defines the language model backend.
type ModelConfig struct {
	// BaseURL is an OpenAI-compatible API root (default https://api.openai.com).
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Name    string `yaml:"name"`
	// Temperature is optional; the backend default applies when nil.
	Temperature *float64 `yaml:"temperature"`
	// MaxTokens defaults to 1024 when zero.
	MaxTokens int `yaml:"max_tokens"`
}

// GitHubConfig defines the issue tracker the create_issue tool targets.
type GitHubConfig struct {
	Token string `yaml:"token"`
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
}

// FeedbackConfig defines the user feedback store.
type FeedbackConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables so tokens can live outside the file.
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Slack: SlackConfig{
			ContextLimit: 11,
		},
		Model: ModelConfig{
			BaseURL:   "https://api.openai.com",
			Name:      "gpt-4o",
			MaxTokens: 1024,
		},
		Feedback: FeedbackConfig{
			Path: "feedback.db",
		},
	}
}

// ValidateServe checks the settings the serve command cannot run without.
func (c *Config) ValidateServe() error {
	if c.Slack.AppToken == "" {
		return fmt.Errorf("slack.app_token is required")
	}
	if c.Slack.BotToken == "" {
		return fmt.Errorf("slack.bot_token is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Slack.ContextLimit < 1 {
		return fmt.Errorf("slack.context_limit must be at least 1")
	}
	return nil
}
