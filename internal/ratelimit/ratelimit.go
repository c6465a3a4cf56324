// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ratelimit caps outbound provider calls with a sliding window.
// The window trails the current moment rather than resetting on a wall-clock
// boundary, so a burst straddling a minute mark cannot double the spend.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most limit calls within any trailing window. Rejected
// calls do not consume budget. All methods are safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  []time.Time
}

// Stats describes the limiter's current occupancy.
type Stats struct {
	Limit    int `json:"limit"`
	InWindow int `json:"in_window"`
}

// New creates a Limiter admitting limit calls per window. Non-positive
// arguments fall back to 60 calls per minute.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		limit:  limit,
		window: window,
	}
}

// Allow reports whether another call may be made now, recording it when
// admitted.
func (l *Limiter) Allow() bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	if len(l.calls) >= l.limit {
		return false
	}
	l.calls = append(l.calls, now)
	return true
}

// Stats returns the limit and the number of calls in the trailing window.
func (l *Limiter) Stats() Stats {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	return Stats{Limit: l.limit, InWindow: len(l.calls)}
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
