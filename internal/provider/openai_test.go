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
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/termbridge/termbridge/internal/protocol"
)

func TestOpenAIComplete(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth header = %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  tus --short\n"}}]}`))
	}))
	defer srv.Close()

	adapter := NewOpenAI(srv.URL, "test-key", nil)
	out, err := adapter.Complete(context.Background(), Params{
		System: "sys prompt",
		User:   "user prompt",
		Model:  "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "tus --short" {
		t.Errorf("result = %q, want %q", out, "tus --short")
	}

	if got.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", got.Model)
	}
	if got.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", got.Temperature)
	}
	if got.MaxTokens != 200 {
		t.Errorf("max_tokens = %d, want 200", got.MaxTokens)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestOpenAINoSystemMessage(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	adapter := NewOpenAI(srv.URL, "k", srv.Client())
	if _, err := adapter.Complete(context.Background(), Params{User: "hi"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want lone user message", got.Messages)
	}
}

func TestOpenAIStatusErrors(t *testing.T) {
	tests := []struct {
		status   int
		wantKind string
	}{
		{http.StatusUnauthorized, protocol.ErrKindUnauthorized},
		{http.StatusForbidden, protocol.ErrKindUnauthorized},
		{http.StatusTooManyRequests, protocol.ErrKindRateLimited},
		{http.StatusInternalServerError, protocol.ErrKindProvider},
		{http.StatusBadGateway, protocol.ErrKindProvider},
	}
	for _, tc := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(`{"error":"nope"}`))
		}))
		adapter := NewOpenAI(srv.URL, "k", srv.Client())
		_, err := adapter.Complete(context.Background(), Params{User: "hi"})
		srv.Close()

		var perr *Error
		if !errors.As(err, &perr) {
			t.Fatalf("status %d: error %T, want *Error", tc.status, err)
		}
		if perr.Kind != tc.wantKind {
			t.Errorf("status %d: kind = %q, want %q", tc.status, perr.Kind, tc.wantKind)
		}
		if perr.StatusCode != tc.status {
			t.Errorf("status %d: StatusCode = %d", tc.status, perr.StatusCode)
		}
	}
}

func TestOpenAIMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"object":"chat.completion"}`))
	}))
	defer srv.Close()

	adapter := NewOpenAI(srv.URL, "k", srv.Client())
	_, err := adapter.Complete(context.Background(), Params{User: "hi"})

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != protocol.ErrKindMalformed {
		t.Fatalf("err = %v, want malformed_response kind", err)
	}
}

func TestOpenAITimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	adapter := NewOpenAI(srv.URL, "k", srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := adapter.Complete(ctx, Params{User: "hi"})

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != protocol.ErrKindTimeout {
		t.Fatalf("err = %v, want timeout kind", err)
	}
}

func TestOpenAIGzipResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ae := r.Header.Get("Accept-Encoding"); ae != "gzip, br" {
			t.Errorf("accept-encoding = %q", ae)
		}
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		zw.Write([]byte(`{"choices":[{"message":{"content":"compressed"}}]}`))
		zw.Close()
	}))
	defer srv.Close()

	adapter := NewOpenAI(srv.URL, "k", srv.Client())
	out, err := adapter.Complete(context.Background(), Params{User: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "compressed" {
		t.Errorf("result = %q", out)
	}
}

func TestClassify(t *testing.T) {
	if kind := classify(context.DeadlineExceeded).Kind; kind != protocol.ErrKindTimeout {
		t.Errorf("deadline kind = %q", kind)
	}
	if kind := classify(context.Canceled).Kind; kind != protocol.ErrKindCancelled {
		t.Errorf("cancel kind = %q", kind)
	}
	if kind := classify(errors.New("connection refused")).Kind; kind != protocol.ErrKindProvider {
		t.Errorf("generic kind = %q", kind)
	}
}
