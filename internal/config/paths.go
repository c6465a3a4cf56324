// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath returns the config file location:
// $XDG_CONFIG_HOME/termbridge/config.yaml, falling back to
// ~/.config/termbridge/config.yaml.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "termbridge", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "termbridge.yaml")
	}
	return filepath.Join(home, ".config", "termbridge", "config.yaml")
}

// SocketPath returns the daemon socket location. A configured override wins;
// otherwise $XDG_RUNTIME_DIR/termbridge.sock, with a per-UID /tmp fallback
// for systems without a runtime dir.
func (c *Config) SocketPath() string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return runtimePath(".sock")
}

// PIDPath returns the daemon PID file location, resolved like SocketPath.
func (c *Config) PIDPath() string {
	if c.Daemon.PIDPath != "" {
		return c.Daemon.PIDPath
	}
	return runtimePath(".pid")
}

func runtimePath(ext string) string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "termbridge"+ext)
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("termbridge-%d%s", os.Getuid(), ext))
}

// EffectiveLogDir returns where rotating log files go: the configured
// override, else $XDG_STATE_HOME/termbridge/logs, else
// ~/.local/state/termbridge/logs.
func (c *Config) EffectiveLogDir() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "termbridge", "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "termbridge-logs")
	}
	return filepath.Join(home, ".local", "state", "termbridge", "logs")
}
