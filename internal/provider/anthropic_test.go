// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/goccy/go-json"

	"github.com/termbridge/termbridge/internal/protocol"
)

func TestAnthropicComplete(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if key := r.Header.Get("x-api-key"); key != "test-key" {
			t.Errorf("x-api-key = %q", key)
		}
		if v := r.Header.Get("anthropic-version"); v != "2023-06-01" {
			t.Errorf("anthropic-version = %q", v)
		}
		if b := r.Header.Get("anthropic-beta"); b != "prompt-caching-2024-07-31" {
			t.Errorf("anthropic-beta = %q", b)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"git push\n"}]}`))
	}))
	defer srv.Close()

	adapter := NewAnthropic(srv.URL, "test-key", srv.Client())
	out, err := adapter.Complete(context.Background(), Params{
		System: "sys prompt",
		User:   "user prompt",
		Model:  "claude-3-5-haiku-latest",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "git push" {
		t.Errorf("result = %q", out)
	}

	if got.Model != "claude-3-5-haiku-latest" {
		t.Errorf("model = %q", got.Model)
	}
	if got.MaxTokens != 200 {
		t.Errorf("max_tokens = %d, want 200", got.MaxTokens)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want lone user message", got.Messages)
	}
	if len(got.System) != 1 {
		t.Fatalf("system blocks = %+v", got.System)
	}
	if got.System[0].Type != "text" || got.System[0].Text != "sys prompt" {
		t.Errorf("system block = %+v", got.System[0])
	}
	if got.System[0].CacheControl.Type != "ephemeral" {
		t.Errorf("cache_control = %+v", got.System[0].CacheControl)
	}
}

func TestAnthropicOmitsEmptySystem(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		raw = string(body)
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	adapter := NewAnthropic(srv.URL, "k", srv.Client())
	if _, err := adapter.Complete(context.Background(), Params{User: "hi"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if strings.Contains(raw, `"system"`) {
		t.Errorf("empty system serialized: %s", raw)
	}
}

func TestAnthropicStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	adapter := NewAnthropic(srv.URL, "k", srv.Client())
	_, err := adapter.Complete(context.Background(), Params{User: "hi"})

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != protocol.ErrKindRateLimited {
		t.Fatalf("err = %v, want rate_limited kind", err)
	}
}

func TestAnthropicMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	adapter := NewAnthropic(srv.URL, "k", srv.Client())
	_, err := adapter.Complete(context.Background(), Params{User: "hi"})

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != protocol.ErrKindMalformed {
		t.Fatalf("err = %v, want malformed_response kind", err)
	}
}

func TestAnthropicBrotliResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		bw.Write([]byte(`{"content":[{"type":"text","text":"compressed"}]}`))
		bw.Close()
	}))
	defer srv.Close()

	adapter := NewAnthropic(srv.URL, "k", srv.Client())
	out, err := adapter.Complete(context.Background(), Params{User: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "compressed" {
		t.Errorf("result = %q", out)
	}
}
