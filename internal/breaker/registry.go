// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package breaker

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Event describes a breaker state transition.
type Event struct {
	// Provider is the provider whose breaker transitioned.
	Provider string `json:"provider"`

	// From is the state before the transition.
	From State `json:"from"`

	// To is the state after the transition.
	To State `json:"to"`

	// At is when the transition happened.
	At time.Time `json:"at"`
}

// EventHandler receives breaker transitions. Handlers run on the caller's
// goroutine after the registry lock is released and must not block.
type EventHandler func(Event)

// Registry holds one breaker per provider. Failures against one provider
// never affect another. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	cfg      Config
	breakers map[string]*Breaker
	handlers []EventHandler
}

// NewRegistry creates a Registry that lazily allocates a breaker per
// provider using cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// AddEventHandler registers a handler for state transitions.
func (r *Registry) AddEventHandler(h EventHandler) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.handlers = append(r.handlers, h)
	r.mu.Unlock()
}

func (r *Registry) get(provider string) *Breaker {
	b, ok := r.breakers[provider]
	if !ok {
		b = newBreaker(r.cfg)
		r.breakers[provider] = b
	}
	return b
}

// Admit reports whether an outbound call to provider may proceed. A true
// result must be paired with exactly one RecordSuccess, RecordFailure, or
// Release for the same provider; in half-open state that pairing is what
// resolves the probe.
func (r *Registry) Admit(provider string) bool {
	now := time.Now()

	r.mu.Lock()
	b := r.get(provider)
	before := b.state
	ok := b.admit(now)
	ev, fire := r.transitionLocked(provider, before, b.state, now)
	r.mu.Unlock()

	if fire {
		r.fire(ev)
	}
	return ok
}

// RecordSuccess feeds a successful call and its duration into the provider's
// health record.
func (r *Registry) RecordSuccess(provider string, latency time.Duration) {
	now := time.Now()

	r.mu.Lock()
	b := r.get(provider)
	before := b.state
	b.recordSuccess(now, latency)
	ev, fire := r.transitionLocked(provider, before, b.state, now)
	r.mu.Unlock()

	if fire {
		r.fire(ev)
	}
}

// RecordFailure feeds a failed call into the provider's health record. The
// breaker does not care why the call failed; every failure counts toward the
// consecutive-failure streak.
func (r *Registry) RecordFailure(provider string) {
	now := time.Now()

	r.mu.Lock()
	b := r.get(provider)
	before := b.state
	b.recordFailure(now)
	ev, fire := r.transitionLocked(provider, before, b.state, now)
	r.mu.Unlock()

	if fire {
		r.fire(ev)
	}
}

// Release returns an admission that will not be used, for callers that pass
// Admit but abandon the call before it reaches the network (a later gate
// rejected the request). Recording an outcome instead would poison the
// health record with a call that never happened.
func (r *Registry) Release(provider string) {
	r.mu.Lock()
	r.get(provider).release()
	r.mu.Unlock()
}

// SlowLink reports whether the provider's rolling latency average is above
// the high-latency threshold.
func (r *Registry) SlowLink(provider string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(provider).slow()
}

// State returns the provider's current breaker state.
func (r *Registry) State(provider string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(provider).state
}

// Snapshot returns a copy of the health record for one provider.
func (r *Registry) Snapshot(provider string) Snapshot {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(provider).snapshot(now)
}

// SnapshotAll returns health records for every provider seen so far.
func (r *Registry) SnapshotAll() map[string]Snapshot {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.snapshot(now)
	}
	return out
}

func (r *Registry) transitionLocked(provider string, from, to State, at time.Time) (Event, bool) {
	if from == to {
		return Event{}, false
	}
	return Event{Provider: provider, From: from, To: to, At: at}, true
}

func (r *Registry) fire(ev Event) {
	switch ev.To {
	case StateOpen:
		log.Warnf("breaker: provider %s %s -> %s", ev.Provider, ev.From, ev.To)
	default:
		log.Infof("breaker: provider %s %s -> %s", ev.Provider, ev.From, ev.To)
	}

	r.mu.Lock()
	handlers := make([]EventHandler, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
