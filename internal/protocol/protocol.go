// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package protocol defines the request/response types spoken between the
// terminal client and the daemon. Messages are JSON-encoded and sent over a
// Unix domain socket, one per line. Inbound messages form a closed union
// discriminated by the "type" field; parsing validates at the boundary so
// nothing downstream touches raw maps.
package protocol

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Kind identifies a request variant on the wire.
type Kind string

const (
	// KindComplete asks for an inline completion of the typed buffer, or a
	// proactive suggestion when the buffer is empty.
	KindComplete Kind = "complete"

	// KindNL asks for a shell command built from a natural-language prompt.
	KindNL Kind = "nl"

	// KindErrorCorrect asks for a corrected version of a failed command.
	KindErrorCorrect Kind = "error_correct"

	// KindHistorySearch asks for history entries matching a natural-language
	// query.
	KindHistorySearch Kind = "history_search"

	// KindReloadConfig asks the daemon to re-read its configuration.
	KindReloadConfig Kind = "reload_config"
)

// Error kinds carried in ErrorInfo. The first group maps provider failures;
// the second group is produced locally and never involves the network.
const (
	ErrKindTimeout      = "timeout"
	ErrKindUnauthorized = "unauthorized"
	ErrKindRateLimited  = "rate_limited"
	ErrKindProvider     = "provider_error"
	ErrKindMalformed    = "malformed_response"

	ErrKindOffline          = "offline"
	ErrKindLocalRateLimited = "local_rate_limited"
	ErrKindCancelled        = "cancelled"
	ErrKindBadRequest       = "bad_request"
)

// Request is implemented by every inbound message variant.
type Request interface {
	// Kind returns the wire discriminator of the variant.
	Kind() Kind

	// RequestID returns the caller-assigned correlation id. It is opaque to
	// the daemon and may be empty.
	RequestID() string
}

// CompleteRequest asks for a completion of the current buffer. An empty
// buffer together with non-empty LastOutput marks the proactive variant.
type CompleteRequest struct {
	ID          string   `json:"request_id"`
	Buffer      string   `json:"buffer"`
	Cwd         string   `json:"cwd"`
	Shell       string   `json:"shell"`
	History     []string `json:"history"`
	LastCommand string   `json:"last_command"`
	LastOutput  string   `json:"last_output"`
	ExitStatus  int      `json:"exit_status"`
}

func (r *CompleteRequest) Kind() Kind        { return KindComplete }
func (r *CompleteRequest) RequestID() string { return r.ID }

// Proactive reports whether this is the speculative suggestion variant.
func (r *CompleteRequest) Proactive() bool {
	return r.Buffer == "" && r.LastOutput != ""
}

// NLRequest asks for a command built from a natural-language prompt.
type NLRequest struct {
	ID      string   `json:"request_id"`
	Prompt  string   `json:"prompt"`
	Buffer  string   `json:"buffer"`
	Cwd     string   `json:"cwd"`
	Shell   string   `json:"shell"`
	History []string `json:"history"`
}

func (r *NLRequest) Kind() Kind        { return KindNL }
func (r *NLRequest) RequestID() string { return r.ID }

// ErrorCorrectRequest asks for a corrected version of a failed command.
type ErrorCorrectRequest struct {
	ID            string `json:"request_id"`
	FailedCommand string `json:"failed_command"`
	ExitStatus    int    `json:"exit_status"`
	Stderr        string `json:"stderr"`
	Cwd           string `json:"cwd"`
	Shell         string `json:"shell"`
}

func (r *ErrorCorrectRequest) Kind() Kind        { return KindErrorCorrect }
func (r *ErrorCorrectRequest) RequestID() string { return r.ID }

// HistorySearchRequest asks for history entries matching a query.
type HistorySearchRequest struct {
	ID      string   `json:"request_id"`
	Query   string   `json:"query"`
	History []string `json:"history"`
	Shell   string   `json:"shell"`
}

func (r *HistorySearchRequest) Kind() Kind        { return KindHistorySearch }
func (r *HistorySearchRequest) RequestID() string { return r.ID }

// ReloadConfigRequest asks the daemon to re-read its configuration.
type ReloadConfigRequest struct {
	ID string `json:"request_id"`
}

func (r *ReloadConfigRequest) Kind() Kind        { return KindReloadConfig }
func (r *ReloadConfigRequest) RequestID() string { return r.ID }

// UnknownTypeError reports an inbound message whose type is not part of the
// protocol.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown request type: %q", e.Type)
}

// ParseRequest decodes one line into its typed variant.
func ParseRequest(line []byte) (Request, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, fmt.Errorf("malformed request: %w", err)
	}

	var req Request
	switch head.Type {
	case KindComplete:
		req = &CompleteRequest{}
	case KindNL:
		req = &NLRequest{}
	case KindErrorCorrect:
		req = &ErrorCorrectRequest{}
	case KindHistorySearch:
		req = &HistorySearchRequest{}
	case KindReloadConfig:
		req = &ReloadConfigRequest{}
	default:
		return nil, &UnknownTypeError{Type: string(head.Type)}
	}

	if err := json.Unmarshal(line, req); err != nil {
		return nil, fmt.Errorf("malformed %s request: %w", head.Type, err)
	}
	return req, nil
}
