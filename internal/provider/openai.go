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

// DefaultOpenAIBaseURL is used when the config leaves the base URL empty.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI talks to the OpenAI chat completions API, or any compatible
// endpoint reachable at a custom base URL.
type OpenAI struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAI creates an adapter for an OpenAI-compatible endpoint. An empty
// baseURL selects the official API; a nil client gets the shared transport.
func NewOpenAI(baseURL, apiKey string, client *http.Client) *OpenAI {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if client == nil {
		client = NewHTTPClient()
	}
	return &OpenAI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (a *OpenAI) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// Complete implements Adapter.
func (a *OpenAI) Complete(ctx context.Context, p Params) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if p.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: p.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: p.User})

	payload, err := json.Marshal(openAIRequest{
		Model:       p.Model,
		Messages:    messages,
		Temperature: p.temperature(),
		MaxTokens:   p.maxTokens(),
	})
	if err != nil {
		return "", &Error{Kind: protocol.ErrKindProvider, Message: "encode request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", classify(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Accept-Encoding", acceptEncoding)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer closeBody(resp, "openai adapter")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := readBody(resp)
		log.Debugf("openai adapter: error status: %d, error body: %s", resp.StatusCode, trimBody(body))
		return "", statusError(resp.StatusCode, body)
	}

	body, err := readBody(resp)
	if err != nil {
		return "", classify(err)
	}
	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return "", &Error{Kind: protocol.ErrKindMalformed, Message: "response missing choices.0.message.content"}
	}
	return strings.TrimSpace(content.String()), nil
}
