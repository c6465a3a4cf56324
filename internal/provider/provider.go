// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package provider implements the adapters that carry completion calls to
// remote LLM APIs. Adapters are stateless and single-shot: retries, caching,
// and breaker admission all happen above them.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/termbridge/termbridge/internal/protocol"
)

// Params carries one completion call to an adapter.
type Params struct {
	System      string
	User        string
	Model       string
	MaxTokens   int     // 0 means the default of 200
	Temperature float64 // 0 means the default of 0.3
}

const (
	defaultMaxTokens   = 200
	defaultTemperature = 0.3
)

// Adapter sends a single completion request to one provider API.
type Adapter interface {
	// Name identifies the provider, e.g. "openai" or "anthropic".
	Name() string

	// Complete sends one request and returns the model's text with
	// surrounding whitespace stripped. Failures come back as *Error.
	Complete(ctx context.Context, p Params) (string, error)
}

// Error describes a failed provider call in terms the wire protocol reports.
type Error struct {
	Kind       string // one of the protocol.ErrKind* values
	StatusCode int    // HTTP status when the provider answered at all
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d", e.Kind, e.StatusCode)
	}
	return e.Kind
}

// statusError maps a non-2xx provider response onto the error taxonomy.
func statusError(code int, body []byte) *Error {
	kind := protocol.ErrKindProvider
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = protocol.ErrKindUnauthorized
	case code == http.StatusTooManyRequests:
		kind = protocol.ErrKindRateLimited
	}
	return &Error{Kind: kind, StatusCode: code, Message: trimBody(body)}
}

// classify maps transport-level failures onto the error taxonomy.
func classify(err error) *Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: protocol.ErrKindTimeout, Message: "request deadline exceeded"}
	case errors.Is(err, context.Canceled):
		return &Error{Kind: protocol.ErrKindCancelled, Message: "request cancelled"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: protocol.ErrKindTimeout, Message: err.Error()}
	}
	return &Error{Kind: protocol.ErrKindProvider, Message: err.Error()}
}

const maxErrorBody = 300

// trimBody bounds an error body so upstream HTML error pages do not flood
// the logs or the wire.
func trimBody(body []byte) string {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return string(body)
}

func (p Params) maxTokens() int {
	if p.MaxTokens > 0 {
		return p.MaxTokens
	}
	return defaultMaxTokens
}

func (p Params) temperature() float64 {
	if p.Temperature > 0 {
		return p.Temperature
	}
	return defaultTemperature
}
