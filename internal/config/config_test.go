// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
provider:
  name: anthropic
  api-key: file-key
  api-base-url: http://localhost:9999
  model: claude-sonnet-4
  autocomplete-model: claude-3-5-haiku-latest
daemon:
  socket-path: /tmp/custom.sock
  idle-timeout-minutes: 10
  proactive-suggestions: false
  capture-blocklist: [vim, custom-tool]
gateway:
  cache-ttl-seconds: 30
  cache-max-entries: 50
  rate-limit-per-minute: 20
  token-estimator: simple
api:
  enabled: false
  port: 9001
debug: true
logging-to-file: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Provider.Name != ProviderAnthropic {
		t.Errorf("provider name = %q", cfg.Provider.Name)
	}
	if cfg.Provider.APIKey != "file-key" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.Model != "claude-sonnet-4" {
		t.Errorf("model = %q", cfg.Provider.Model)
	}
	if cfg.Daemon.SocketPath != "/tmp/custom.sock" {
		t.Errorf("socket path = %q", cfg.Daemon.SocketPath)
	}
	if cfg.Daemon.IdleTimeoutMinutes != 10 {
		t.Errorf("idle timeout = %d", cfg.Daemon.IdleTimeoutMinutes)
	}
	if cfg.Daemon.ProactiveSuggestions {
		t.Error("proactive suggestions should be off")
	}
	if len(cfg.Daemon.CaptureBlocklist) != 2 || cfg.Daemon.CaptureBlocklist[1] != "custom-tool" {
		t.Errorf("blocklist = %v", cfg.Daemon.CaptureBlocklist)
	}
	if cfg.Gateway.CacheTTLSeconds != 30 || cfg.Gateway.CacheMaxEntries != 50 {
		t.Errorf("cache tuning = %+v", cfg.Gateway)
	}
	if cfg.Gateway.TokenEstimator != "simple" {
		t.Errorf("token estimator = %q", cfg.Gateway.TokenEstimator)
	}
	if cfg.API.Enabled || cfg.API.Port != 9001 {
		t.Errorf("api = %+v", cfg.API)
	}
	if !cfg.Debug || !cfg.LoggingToFile {
		t.Error("debug/logging flags not loaded")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "provider:\n  model: gpt-4o\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Provider.Name != ProviderOpenAI {
		t.Errorf("default provider = %q", cfg.Provider.Name)
	}
	if cfg.Gateway.CacheTTLSeconds != 60 || cfg.Gateway.CacheMaxEntries != 200 || cfg.Gateway.RateLimitPerMinute != 60 {
		t.Errorf("gateway defaults = %+v", cfg.Gateway)
	}
	if cfg.Gateway.TokenEstimator != "tiktoken" {
		t.Errorf("token estimator default = %q", cfg.Gateway.TokenEstimator)
	}
	if cfg.Daemon.IdleTimeoutMinutes != 30 {
		t.Errorf("idle timeout default = %d", cfg.Daemon.IdleTimeoutMinutes)
	}
	if !cfg.Daemon.ProactiveSuggestions {
		t.Error("proactive suggestions should default on")
	}
	if !cfg.API.Enabled || cfg.API.Port != DefaultAPIPort {
		t.Errorf("api defaults = %+v", cfg.API)
	}

	blocklist := strings.Join(cfg.Daemon.CaptureBlocklist, " ")
	for _, program := range []string{"vim", "ssh", "htop", "fzf"} {
		if !strings.Contains(blocklist, program) {
			t.Errorf("default blocklist missing %q", program)
		}
	}
}

func TestLoadConfigOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	if _, err := LoadConfig(missing); err == nil {
		t.Error("missing file should fail when required")
	}

	cfg, err := LoadConfigOptional(missing, true)
	if err != nil {
		t.Fatalf("optional load: %v", err)
	}
	if cfg.Provider.Name != ProviderOpenAI {
		t.Errorf("optional defaults not applied: %+v", cfg.Provider)
	}
}

func TestEnvAPIKeyOverride(t *testing.T) {
	t.Setenv("TERMBRIDGE_API_KEY", "env-key")
	path := writeConfig(t, "provider:\n  api-key: file-key\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("api key = %q, want env override", cfg.Provider.APIKey)
	}
}

func TestProviderSpecificEnvKeyWins(t *testing.T) {
	t.Setenv("TERMBRIDGE_API_KEY", "generic-key")
	t.Setenv("TERMBRIDGE_OPENAI_API_KEY", "openai-key")
	t.Setenv("TERMBRIDGE_ANTHROPIC_API_KEY", "anthropic-key")

	cfg, err := LoadConfig(writeConfig(t, "provider:\n  api-key: file-key\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Provider.APIKey != "openai-key" {
		t.Errorf("api key = %q, want the openai-specific override", cfg.Provider.APIKey)
	}

	cfg, err = LoadConfig(writeConfig(t, "provider:\n  name: anthropic\n  model: claude-sonnet-4-5\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Provider.APIKey != "anthropic-key" {
		t.Errorf("api key = %q, want the anthropic-specific override", cfg.Provider.APIKey)
	}
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, "provider:\n  name: hal9000\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("unknown provider should fail validation")
	}

	cfg := defaultConfig()
	cfg.Gateway.CacheTTLSeconds = -5
	cfg.Gateway.TokenEstimator = "guess"
	cfg.API.Port = 99999
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Gateway.CacheTTLSeconds != 60 {
		t.Errorf("ttl not normalized: %d", cfg.Gateway.CacheTTLSeconds)
	}
	if cfg.Gateway.TokenEstimator != "tiktoken" {
		t.Errorf("estimator not normalized: %q", cfg.Gateway.TokenEstimator)
	}
	if cfg.API.Port != DefaultAPIPort {
		t.Errorf("port not normalized: %d", cfg.API.Port)
	}

	cfg = defaultConfig()
	cfg.Provider.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty model should fail validation")
	}
}

func TestEffectiveAutocompleteModel(t *testing.T) {
	p := ProviderConfig{Model: "gpt-4o"}
	if got := p.EffectiveAutocompleteModel(); got != "gpt-4o" {
		t.Errorf("fallback = %q", got)
	}
	p.AutocompleteModel = "gpt-4o-mini"
	if got := p.EffectiveAutocompleteModel(); got != "gpt-4o-mini" {
		t.Errorf("explicit = %q", got)
	}
}

func TestSocketAndPIDPaths(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	if got := cfg.SocketPath(); got != "/run/user/1000/termbridge.sock" {
		t.Errorf("socket path = %q", got)
	}
	if got := cfg.PIDPath(); got != "/run/user/1000/termbridge.pid" {
		t.Errorf("pid path = %q", got)
	}

	t.Setenv("XDG_RUNTIME_DIR", "")
	if got := cfg.SocketPath(); !strings.HasPrefix(filepath.Base(got), "termbridge-") || !strings.HasSuffix(got, ".sock") {
		t.Errorf("fallback socket path = %q", got)
	}

	cfg.Daemon.SocketPath = "/tmp/override.sock"
	if got := cfg.SocketPath(); got != "/tmp/override.sock" {
		t.Errorf("override socket path = %q", got)
	}
}

func TestEffectiveLogDir(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("XDG_STATE_HOME", "/var/state")
	if got := cfg.EffectiveLogDir(); got != "/var/state/termbridge/logs" {
		t.Errorf("log dir = %q", got)
	}

	cfg.LogDir = "/custom/logs"
	if got := cfg.EffectiveLogDir(); got != "/custom/logs" {
		t.Errorf("override log dir = %q", got)
	}
}
