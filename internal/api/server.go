// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api serves the localhost HTTP status surface: daemon health and
// counters, config reload, and a websocket stream of circuit breaker
// transitions. It binds 127.0.0.1 only; the daemon has no business being
// reachable from the network.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/termbridge/termbridge/internal/breaker"
	"github.com/termbridge/termbridge/internal/buildinfo"
	"github.com/termbridge/termbridge/internal/cache"
	"github.com/termbridge/termbridge/internal/config"
	"github.com/termbridge/termbridge/internal/gateway"
	"github.com/termbridge/termbridge/internal/ratelimit"
)

// Server is the localhost status API.
type Server struct {
	cfg    *config.Config
	gw     *gateway.Gateway
	engine *gin.Engine
	hub    *eventHub
}

// NewServer builds the API server and subscribes its event stream to the
// gateway's breaker transitions.
func NewServer(cfg *config.Config, gw *gateway.Gateway) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		gw:     gw,
		engine: engine,
		hub:    newEventHub(),
	}
	gw.OnBreakerEvent(s.hub.publish)
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")
	v1.GET("/status", s.statusHandler)
	v1.POST("/reload", s.reloadHandler)
	v1.GET("/events", s.eventsHandler)
}

// StatusResponse is the /v1/status payload.
type StatusResponse struct {
	Version       string                      `json:"version"`
	Commit        string                      `json:"commit"`
	UptimeSeconds int64                       `json:"uptime_seconds"`
	Provider      string                      `json:"provider"`
	Model         string                      `json:"model"`
	Health        map[string]breaker.Snapshot `json:"health"`
	Cache         cache.Metrics               `json:"cache"`
	RateLimit     ratelimit.Stats             `json:"rate_limit"`
	SessionLen    int                         `json:"session_len"`
}

func (s *Server) statusHandler(c *gin.Context) {
	cfg := s.gw.CurrentConfig()
	c.JSON(http.StatusOK, StatusResponse{
		Version:       buildinfo.Version,
		Commit:        buildinfo.Commit,
		UptimeSeconds: int64(time.Since(s.gw.Started()).Seconds()),
		Provider:      cfg.Provider.Name,
		Model:         cfg.Provider.Model,
		Health:        s.gw.HealthSnapshot(),
		Cache:         s.gw.CacheStats(),
		RateLimit:     s.gw.LimiterStats(),
		SessionLen:    s.gw.SessionLen(),
	})
}

func (s *Server) reloadHandler(c *gin.Context) {
	if err := s.gw.Reload(); err != nil {
		log.Errorf("api: reload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Serve binds 127.0.0.1 on the configured port and serves until the context
// is cancelled. No write timeout on the server: /v1/events connections stay
// open for the daemon's lifetime.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.API.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warnf("api: shutdown: %v", err)
		}
	})
	defer stop()

	log.Infof("api: listening on http://%s", addr)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
