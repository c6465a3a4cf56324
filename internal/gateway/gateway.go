// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gateway routes inbound requests to the configured LLM provider
// through the shared health, cache, session, and rate-limit structures. The
// gateway owns those structures exclusively; other packages observe them
// only through the snapshot accessors.
package gateway

import (
	"errors"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/termbridge/termbridge/internal/breaker"
	"github.com/termbridge/termbridge/internal/cache"
	"github.com/termbridge/termbridge/internal/config"
	"github.com/termbridge/termbridge/internal/prompt"
	"github.com/termbridge/termbridge/internal/protocol"
	"github.com/termbridge/termbridge/internal/provider"
	"github.com/termbridge/termbridge/internal/ratelimit"
	"github.com/termbridge/termbridge/internal/session"
)

// sessionCapacity is the number of command/output pairs kept as proactive
// prompt context.
const sessionCapacity = 20

// Policy fixes the adapter-call budget for one request kind. The table is
// part of the protocol contract, not per-call configuration: speculative
// kinds fail silently with a short budget, user-initiated kinds wait longer
// and retry once.
type Policy struct {
	// Timeout is the hard deadline for a single adapter call.
	Timeout time.Duration

	// Retries is how many extra attempts follow a failed call.
	Retries int

	// RetryDelay is the fixed pause before each extra attempt.
	RetryDelay time.Duration
}

// DefaultPolicies returns the per-kind policy table.
func DefaultPolicies() map[protocol.Kind]Policy {
	return map[protocol.Kind]Policy{
		protocol.KindComplete:      {Timeout: 3 * time.Second},
		protocol.KindErrorCorrect:  {Timeout: 3 * time.Second},
		protocol.KindNL:            {Timeout: 12 * time.Second, Retries: 1, RetryDelay: 500 * time.Millisecond},
		protocol.KindHistorySearch: {Timeout: 8 * time.Second, Retries: 1, RetryDelay: 500 * time.Millisecond},
	}
}

// Options configures a Gateway. Config is required; everything else has a
// production default.
type Options struct {
	// Config is the initial configuration snapshot. Must be validated.
	Config *config.Config

	// ConfigPath is re-read on Reload. Empty disables file-backed reloads.
	ConfigPath string

	// Breaker overrides the circuit-breaker thresholds. The zero value
	// means breaker.DefaultConfig().
	Breaker breaker.Config

	// HTTPClient is shared by the provider adapters. Nil means
	// provider.NewHTTPClient().
	HTTPClient *http.Client

	// Adapters overrides adapter construction by provider name. Tests use
	// this to stay off the network.
	Adapters map[string]provider.Adapter

	// Policies overrides the per-kind policy table.
	Policies map[protocol.Kind]Policy
}

// Gateway routes requests for one daemon process. All methods are safe for
// concurrent use; each in-flight request runs on its caller's goroutine and
// touches shared state only through the guarded structures.
type Gateway struct {
	mu        sync.RWMutex // guards cfg, adapter, estimator across reloads
	cfg       *config.Config
	adapter   provider.Adapter
	estimator *prompt.TokenEstimator

	configPath string
	httpClient *http.Client
	overrides  map[string]provider.Adapter

	breakers *breaker.Registry
	cache    *cache.Cache
	session  *session.Buffer
	limiter  *ratelimit.Limiter

	policies map[protocol.Kind]Policy

	// latest tracks the newest request id per kind for latest-wins
	// cancellation. Requests without an id are not tracked.
	latestMu sync.Mutex
	latest   map[protocol.Kind]string

	started time.Time
}

// New creates a Gateway from opts. opts.Config must be non-nil and already
// validated.
func New(opts Options) *Gateway {
	cfg := opts.Config
	bcfg := opts.Breaker
	if bcfg == (breaker.Config{}) {
		bcfg = breaker.DefaultConfig()
	}
	client := opts.HTTPClient
	if client == nil {
		client = provider.NewHTTPClient()
	}
	policies := opts.Policies
	if policies == nil {
		policies = DefaultPolicies()
	}

	g := &Gateway{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		httpClient: client,
		overrides:  opts.Adapters,
		breakers:   breaker.NewRegistry(bcfg),
		cache:      cache.New(cfg.Gateway.CacheMaxEntries),
		session:    session.NewBuffer(sessionCapacity),
		limiter:    ratelimit.New(cfg.Gateway.RateLimitPerMinute, time.Minute),
		policies:   policies,
		latest:     make(map[protocol.Kind]string),
		started:    time.Now(),
	}
	g.adapter = g.buildAdapter(cfg)
	g.estimator = prompt.NewTokenEstimator(cfg.Gateway.TokenEstimator)
	return g
}

func (g *Gateway) buildAdapter(cfg *config.Config) provider.Adapter {
	if a, ok := g.overrides[cfg.Provider.Name]; ok {
		return a
	}
	switch cfg.Provider.Name {
	case config.ProviderAnthropic:
		return provider.NewAnthropic(cfg.Provider.APIBaseURL, cfg.Provider.APIKey, g.httpClient)
	default:
		return provider.NewOpenAI(cfg.Provider.APIBaseURL, cfg.Provider.APIKey, g.httpClient)
	}
}

// snapshot hands out the current config and collaborators so the lock is
// not held across an adapter call.
func (g *Gateway) snapshot() (*config.Config, provider.Adapter) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg, g.adapter
}

// Reload re-reads the config file and applies it. In-flight requests keep
// the snapshot they started with.
func (g *Gateway) Reload() error {
	if g.configPath == "" {
		return errors.New("gateway: no config path to reload from")
	}
	cfg, err := config.LoadConfigOptional(g.configPath, true)
	if err != nil {
		return err
	}
	g.ApplyConfig(cfg)
	return nil
}

// ApplyConfig swaps in an already-validated configuration snapshot
// atomically. The response cache is cleared because cached answers may have
// come from the previous provider or model.
func (g *Gateway) ApplyConfig(cfg *config.Config) {
	g.mu.Lock()
	g.cfg = cfg
	g.adapter = g.buildAdapter(cfg)
	g.estimator = prompt.NewTokenEstimator(cfg.Gateway.TokenEstimator)
	g.mu.Unlock()

	g.cache.Clear()
	log.Infof("gateway: configuration applied (provider %s, model %s)",
		cfg.Provider.Name, cfg.Provider.Model)
}

// CurrentConfig returns the active configuration snapshot. Callers must
// treat it as immutable.
func (g *Gateway) CurrentConfig() *config.Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// HealthSnapshot returns per-provider breaker health for status reporting.
func (g *Gateway) HealthSnapshot() map[string]breaker.Snapshot {
	return g.breakers.SnapshotAll()
}

// CacheStats returns response-cache counters.
func (g *Gateway) CacheStats() cache.Metrics {
	return g.cache.Stats()
}

// LimiterStats returns rate-limiter occupancy.
func (g *Gateway) LimiterStats() ratelimit.Stats {
	return g.limiter.Stats()
}

// SessionLen returns the number of buffered session entries.
func (g *Gateway) SessionLen() int {
	return g.session.Len()
}

// Started returns when this gateway was constructed.
func (g *Gateway) Started() time.Time {
	return g.started
}

// OnBreakerEvent registers a handler for breaker state transitions.
// Handlers run on request goroutines and must not block.
func (g *Gateway) OnBreakerEvent(h breaker.EventHandler) {
	g.breakers.AddEventHandler(h)
}
