// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cmd wires the daemon together: the request gateway, the Unix
// socket server, the status API, and the config file watcher, with
// signal-driven shutdown.
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/termbridge/termbridge/internal/api"
	"github.com/termbridge/termbridge/internal/config"
	"github.com/termbridge/termbridge/internal/gateway"
	"github.com/termbridge/termbridge/internal/server"
	"github.com/termbridge/termbridge/internal/watcher"
)

// StartDaemon builds and runs the daemon until a signal arrives or the idle
// timeout stops it. The socket server is the anchor: when it returns, the
// API server and watcher are shut down too.
func StartDaemon(cfg *config.Config, configPath string) {
	gw := gateway.New(gateway.Options{
		Config:     cfg,
		ConfigPath: configPath,
	})
	srv := server.New(cfg, gw)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup

	if cfg.API.Enabled {
		apiSrv := api.NewServer(cfg, gw)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiSrv.Serve(ctx); err != nil {
				log.Errorf("api server exited: %v", err)
			}
		}()
	}

	if configPath != "" {
		w := watcher.New(configPath, gw.Reload)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				log.Warnf("config watcher unavailable: %v", err)
			}
		}()
	}

	err := srv.Serve(ctx)

	// Serve also returns on idle shutdown, which cancels nothing outside the
	// socket server; bring the rest down explicitly.
	cancel()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("daemon exited with error: %v", err)
	}
}
