// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the termbridge daemon, the
// local gateway between a terminal input surface and remote LLM providers.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/termbridge/termbridge/internal/buildinfo"
	"github.com/termbridge/termbridge/internal/cmd"
	"github.com/termbridge/termbridge/internal/config"
	"github.com/termbridge/termbridge/internal/logging"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	var (
		configPath  string
		socketPath  string
		debug       bool
		showVersion bool
	)
	flag.StringVar(&configPath, "config", config.DefaultConfigPath(), "Configuration file path")
	flag.StringVar(&socketPath, "socket", "", "Unix socket path (overrides the config file)")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("termbridged Version: %s, Commit: %s, BuiltAt: %s\n",
			buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	// Load environment variables from .env if present.
	if wd, err := os.Getwd(); err == nil {
		if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil && !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	// A missing config file is fine: defaults plus TERMBRIDGE_API_KEY make a
	// working daemon. A present-but-broken file is not.
	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Errorf("failed to load config %s: %v", configPath, err)
		return
	}
	if socketPath != "" {
		cfg.Daemon.SocketPath = socketPath
	}
	if debug {
		cfg.Debug = true
	}

	logging.SetDebug(cfg.Debug)
	if err := logging.ConfigureLogOutput(cfg.EffectiveLogDir(), cfg.LoggingToFile); err != nil {
		log.Warnf("file logging unavailable: %v", err)
	}

	log.Infof("termbridged %s starting (provider %s, model %s)",
		buildinfo.Version, cfg.Provider.Name, cfg.Provider.Model)
	if cfg.Provider.APIKey == "" {
		log.Warn("no API key configured; set provider.api-key or TERMBRIDGE_API_KEY")
	}

	cmd.StartDaemon(cfg, configPath)
}
