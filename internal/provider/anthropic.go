// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package provider

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/termbridge/termbridge/internal/protocol"
)

// DefaultAnthropicBaseURL is used when the config leaves the base URL empty.
const DefaultAnthropicBaseURL = "https://api.anthropic.com"

const (
	anthropicVersion = "2023-06-01"
	anthropicBeta    = "prompt-caching-2024-07-31"
)

// Anthropic talks to the Anthropic messages API. The system prompt goes as
// a cacheable content block so repeated completions reuse the prompt prefix.
type Anthropic struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAnthropic creates an adapter for the Anthropic API. An empty baseURL
// selects the official API; a nil client gets the shared transport.
func NewAnthropic(baseURL, apiKey string, client *http.Client) *Anthropic {
	if baseURL == "" {
		baseURL = DefaultAnthropicBaseURL
	}
	if client == nil {
		client = NewHTTPClient()
	}
	return &Anthropic{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicSystemBlock struct {
	Type         string       `json:"type"`
	Text         string       `json:"text"`
	CacheControl cacheControl `json:"cache_control"`
}

type cacheControl struct {
	Type string `json:"type"`
}

type anthropicRequest struct {
	Model       string                 `json:"model"`
	Messages    []chatMessage          `json:"messages"`
	MaxTokens   int                    `json:"max_tokens"`
	Temperature float64                `json:"temperature"`
	System      []anthropicSystemBlock `json:"system,omitempty"`
}

// Complete implements Adapter.
func (a *Anthropic) Complete(ctx context.Context, p Params) (string, error) {
	body := anthropicRequest{
		Model:       p.Model,
		Messages:    []chatMessage{{Role: "user", Content: p.User}},
		MaxTokens:   p.maxTokens(),
		Temperature: p.temperature(),
	}
	if p.System != "" {
		body.System = []anthropicSystemBlock{{
			Type:         "text",
			Text:         p.System,
			CacheControl: cacheControl{Type: "ephemeral"},
		}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", &Error{Kind: protocol.ErrKindProvider, Message: "encode request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", classify(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("anthropic-beta", anthropicBeta)
	req.Header.Set("Accept-Encoding", acceptEncoding)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer closeBody(resp, "anthropic adapter")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := readBody(resp)
		log.Debugf("anthropic adapter: error status: %d, error body: %s", resp.StatusCode, trimBody(respBody))
		return "", statusError(resp.StatusCode, respBody)
	}

	respBody, err := readBody(resp)
	if err != nil {
		return "", classify(err)
	}
	text := gjson.GetBytes(respBody, "content.0.text")
	if !text.Exists() {
		return "", &Error{Kind: protocol.ErrKindMalformed, Message: "response missing content.0.text"}
	}
	return strings.TrimSpace(text.String()), nil
}
