// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the termbridge daemon.
// It handles loading and parsing YAML configuration files, and provides
// structured access to provider credentials, daemon lifecycle settings, and
// request pipeline tuning.
package config

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in the config file.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// DefaultAPIPort is the localhost port for the status API.
const DefaultAPIPort = 8319

// DefaultCaptureBlocklist lists programs whose output never enters the
// session buffer. Interactive and full-screen programs produce control
// sequences, not context.
var DefaultCaptureBlocklist = []string{
	"vim", "nvim", "vi", "nano", "emacs", "pico",
	"less", "more", "most", "bat",
	"top", "htop", "btop", "glances",
	"tmux", "screen",
	"ssh", "mosh",
	"python", "ipython", "node", "irb", "ghci",
	"fzf", "sk",
	"man", "info",
	"watch",
}

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Provider selects and authenticates the upstream LLM API.
	Provider ProviderConfig `yaml:"provider" json:"provider"`

	// Daemon controls the Unix socket surface and process lifecycle.
	Daemon DaemonConfig `yaml:"daemon" json:"daemon"`

	// Gateway tunes the request pipeline: response cache, rate limiting,
	// and prompt token estimation.
	Gateway GatewayConfig `yaml:"gateway" json:"gateway"`

	// API configures the localhost HTTP status server.
	API APIConfig `yaml:"api" json:"api"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile writes logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogDir overrides where rotating log files go. Empty resolves to
	// $XDG_STATE_HOME/termbridge/logs.
	LogDir string `yaml:"log-dir" json:"log-dir"`
}

// ProviderConfig identifies the upstream LLM API.
type ProviderConfig struct {
	// Name picks the adapter: "openai" or "anthropic".
	Name string `yaml:"name" json:"name"`

	// APIKey authenticates against the provider. TERMBRIDGE_API_KEY
	// overrides it, and the provider-specific TERMBRIDGE_OPENAI_API_KEY /
	// TERMBRIDGE_ANTHROPIC_API_KEY overrides both.
	APIKey string `yaml:"api-key" json:"-"`

	// APIBaseURL overrides the provider endpoint, e.g. for proxies or
	// OpenAI-compatible local servers. Empty selects the official endpoint.
	APIBaseURL string `yaml:"api-base-url" json:"api-base-url"`

	// Model serves user-initiated generation: nl and history search.
	Model string `yaml:"model" json:"model"`

	// AutocompleteModel serves completion-class requests, where a smaller,
	// faster model usually wins. Empty reuses Model.
	AutocompleteModel string `yaml:"autocomplete-model" json:"autocomplete-model"`
}

// EffectiveAutocompleteModel returns the completion model, falling back to
// the main model when none is configured.
func (p ProviderConfig) EffectiveAutocompleteModel() string {
	if p.AutocompleteModel != "" {
		return p.AutocompleteModel
	}
	return p.Model
}

// DaemonConfig controls the socket surface and lifecycle.
type DaemonConfig struct {
	// SocketPath overrides the Unix socket location. Empty resolves to
	// $XDG_RUNTIME_DIR/termbridge.sock, else /tmp/termbridge-$UID.sock.
	SocketPath string `yaml:"socket-path" json:"socket-path"`

	// PIDPath overrides the PID file location. Empty resolves next to
	// the socket.
	PIDPath string `yaml:"pid-path" json:"pid-path"`

	// IdleTimeoutMinutes shuts the daemon down after this long without a
	// request. Zero disables idle shutdown.
	IdleTimeoutMinutes int `yaml:"idle-timeout-minutes" json:"idle-timeout-minutes"`

	// ProactiveSuggestions gates suggestions triggered by command output
	// rather than typed input.
	ProactiveSuggestions bool `yaml:"proactive-suggestions" json:"proactive-suggestions"`

	// CaptureBlocklist lists programs whose output never enters the
	// session buffer. Replaces the default list when set.
	CaptureBlocklist []string `yaml:"capture-blocklist" json:"capture-blocklist"`
}

// GatewayConfig tunes the request pipeline.
type GatewayConfig struct {
	// CacheTTLSeconds is how long completed responses stay servable.
	CacheTTLSeconds int `yaml:"cache-ttl-seconds" json:"cache-ttl-seconds"`

	// CacheMaxEntries bounds the response cache.
	CacheMaxEntries int `yaml:"cache-max-entries" json:"cache-max-entries"`

	// RateLimitPerMinute caps provider-bound requests across all kinds.
	RateLimitPerMinute int `yaml:"rate-limit-per-minute" json:"rate-limit-per-minute"`

	// TokenEstimator selects the prompt token estimation method.
	// Valid values: "tiktoken" (accurate), "simple" (fast approximation).
	// Default: "tiktoken".
	TokenEstimator string `yaml:"token-estimator" json:"token-estimator"`
}

// APIConfig configures the localhost status server.
type APIConfig struct {
	// Enabled starts the HTTP status API on localhost.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Port is the localhost port serving /v1/status and /v1/events.
	Port int `yaml:"port" json:"port"`
}

// LoadConfig reads and parses the configuration file at the given path.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads the configuration file; when optional is true, a
// missing file yields the defaults instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config carrying every default, so keys absent
// from the YAML keep their defaults after unmarshalling over it.
func defaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:  ProviderOpenAI,
			Model: "gpt-4o",
		},
		Daemon: DaemonConfig{
			IdleTimeoutMinutes:   30,
			ProactiveSuggestions: true,
			CaptureBlocklist:     append([]string(nil), DefaultCaptureBlocklist...),
		},
		Gateway: GatewayConfig{
			CacheTTLSeconds:    60,
			CacheMaxEntries:    200,
			RateLimitPerMinute: 60,
			TokenEstimator:     "tiktoken",
		},
		API: APIConfig{
			Enabled: true,
			Port:    DefaultAPIPort,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("TERMBRIDGE_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	// The provider-specific variable wins over the generic one, so both
	// keys can sit in the same .env while provider.name flips between them.
	specific := map[string]string{
		ProviderOpenAI:    "TERMBRIDGE_OPENAI_API_KEY",
		ProviderAnthropic: "TERMBRIDGE_ANTHROPIC_API_KEY",
	}
	if env, ok := specific[cfg.Provider.Name]; ok {
		if key := os.Getenv(env); key != "" {
			cfg.Provider.APIKey = key
		}
	}
}

// Validate checks the loaded configuration and normalizes tuning values
// back into their valid ranges. Only an unusable provider is fatal.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q (want %q or %q)", c.Provider.Name, ProviderOpenAI, ProviderAnthropic)
	}
	if c.Provider.Model == "" {
		return errors.New("provider model must be set")
	}

	if c.Gateway.CacheTTLSeconds <= 0 {
		c.Gateway.CacheTTLSeconds = 60
	}
	if c.Gateway.CacheMaxEntries <= 0 {
		c.Gateway.CacheMaxEntries = 200
	}
	if c.Gateway.RateLimitPerMinute <= 0 {
		c.Gateway.RateLimitPerMinute = 60
	}
	if c.Gateway.TokenEstimator != "tiktoken" && c.Gateway.TokenEstimator != "simple" {
		c.Gateway.TokenEstimator = "tiktoken"
	}

	if c.Daemon.IdleTimeoutMinutes < 0 {
		c.Daemon.IdleTimeoutMinutes = 0
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		c.API.Port = DefaultAPIPort
	}
	return nil
}
