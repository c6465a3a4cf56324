// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package breaker tracks per-provider connection health and gates outbound
// calls through a circuit-breaker state machine. A provider that fails
// repeatedly is cut off for a fixed cooldown; after the cooldown a single
// probe request is let through to test recovery.
package breaker

import (
	"time"
)

// State represents the state of a provider's circuit breaker.
type State string

const (
	// StateClosed indicates normal operation; calls flow through.
	StateClosed State = "closed"

	// StateOpen indicates the provider is considered down; calls are rejected
	// without touching the network.
	StateOpen State = "open"

	// StateHalfOpen indicates the cooldown has elapsed and a single probe is
	// being used to test recovery.
	StateHalfOpen State = "half_open"
)

// Config contains the thresholds governing a breaker instance.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from closed to open.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before admitting a probe.
	// The window is fixed rather than exponential so worst-case recovery
	// latency stays bounded.
	Cooldown time.Duration

	// LatencyWindow is the number of recent successful call durations kept
	// for the rolling latency average.
	LatencyWindow int

	// HighLatencyThreshold is the rolling-average latency above which the
	// link is reported slow. Speculative traffic is suppressed on a slow
	// link; user-initiated traffic is not.
	HighLatencyThreshold time.Duration
}

// DefaultConfig returns the production breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:     3,
		Cooldown:             30 * time.Second,
		LatencyWindow:        10,
		HighLatencyThreshold: 2000 * time.Millisecond,
	}
}

// Breaker is the health record and state machine for a single provider.
// It is not safe for concurrent use on its own; the Registry serializes
// access.
type Breaker struct {
	cfg Config

	state               State
	consecutiveFailures int
	lastSuccess         time.Time
	lastFailure         time.Time
	openedAt            time.Time

	// probeInFlight gates half-open admission. Admission is granted to at
	// most one caller per half-open episode; a counter would double-probe
	// under concurrency.
	probeInFlight bool

	// latencies is a fixed ring of recent successful call durations.
	latencies []time.Duration
	latHead   int
	latCount  int
}

// Snapshot is a point-in-time copy of a breaker's health record.
type Snapshot struct {
	// State is the current breaker state.
	State State `json:"state"`

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastSuccess is when the provider last answered successfully.
	// Zero when the provider has not succeeded this process lifetime.
	LastSuccess time.Time `json:"last_success"`

	// LastFailure is when the provider last failed.
	LastFailure time.Time `json:"last_failure"`

	// AvgLatency is the rolling average over the recent successful calls.
	AvgLatency time.Duration `json:"avg_latency"`

	// RetryIn is the remaining cooldown when open, zero otherwise.
	RetryIn time.Duration `json:"retry_in"`
}

func newBreaker(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.LatencyWindow <= 0 {
		cfg.LatencyWindow = 10
	}
	return &Breaker{
		cfg:       cfg,
		state:     StateClosed,
		latencies: make([]time.Duration, cfg.LatencyWindow),
	}
}

// admit reports whether a call may proceed, transitioning open breakers to
// half-open once the cooldown has elapsed. A true result must be paired with
// exactly one recordSuccess, recordFailure, or release call.
func (b *Breaker) admit(now time.Time) bool {
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) < b.cfg.Cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.probeInFlight = true
		return true
	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return true
}

// release returns an admission that was never used. Without it an abandoned
// half-open probe would leave probeInFlight set and the breaker would reject
// everything forever.
func (b *Breaker) release() {
	if b.state == StateHalfOpen {
		b.probeInFlight = false
	}
}

// recordSuccess clears the failure streak and closes the breaker. Any
// success closes it, including one from a call admitted before the breaker
// tripped.
func (b *Breaker) recordSuccess(now time.Time, latency time.Duration) {
	b.consecutiveFailures = 0
	b.lastSuccess = now
	b.probeInFlight = false
	b.state = StateClosed

	b.latencies[b.latHead] = latency
	b.latHead = (b.latHead + 1) % len(b.latencies)
	if b.latCount < len(b.latencies) {
		b.latCount++
	}
}

// recordFailure advances the failure streak and trips or re-opens the
// breaker. A late failure arriving while already open does not restart the
// cooldown.
func (b *Breaker) recordFailure(now time.Time) {
	b.consecutiveFailures++
	b.lastFailure = now

	switch b.state {
	case StateHalfOpen:
		// Probe failed: back to open with a fresh cooldown.
		b.state = StateOpen
		b.openedAt = now
		b.probeInFlight = false
	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.state = StateOpen
			b.openedAt = now
		}
	}
}

// avgLatency returns the rolling average of recent successful calls, or zero
// when no call has succeeded yet.
func (b *Breaker) avgLatency() time.Duration {
	if b.latCount == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < b.latCount; i++ {
		total += b.latencies[i]
	}
	return total / time.Duration(b.latCount)
}

// slow reports whether the rolling latency average exceeds the high-latency
// threshold. Always false until at least one call has succeeded.
func (b *Breaker) slow() bool {
	if b.latCount == 0 || b.cfg.HighLatencyThreshold <= 0 {
		return false
	}
	return b.avgLatency() > b.cfg.HighLatencyThreshold
}

func (b *Breaker) snapshot(now time.Time) Snapshot {
	s := Snapshot{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastSuccess:         b.lastSuccess,
		LastFailure:         b.lastFailure,
		AvgLatency:          b.avgLatency(),
	}
	if b.state == StateOpen {
		if remaining := b.cfg.Cooldown - now.Sub(b.openedAt); remaining > 0 {
			s.RetryIn = remaining
		}
	}
	return s
}
