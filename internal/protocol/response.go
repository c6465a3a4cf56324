// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package protocol

import (
	"github.com/goccy/go-json"
)

// ErrorInfo is the error payload attached to a failed response.
type ErrorInfo struct {
	// Kind is one of the ErrKind constants.
	Kind string `json:"kind"`

	// Message is a short, user-presentable description.
	Message string `json:"message"`
}

// Response is implemented by every outbound message variant.
type Response interface {
	response()
}

// CompleteResponse answers a completion request. Suggestion is empty when
// the daemon has nothing useful; completion failures are silent by design.
type CompleteResponse struct {
	Type       Kind   `json:"type"`
	ID         string `json:"request_id"`
	Suggestion string `json:"suggestion"`
	Warning    string `json:"warning,omitempty"`
}

func (CompleteResponse) response() {}

// NewCompleteResponse builds a completion answer echoing the request id.
func NewCompleteResponse(id, suggestion, warning string) CompleteResponse {
	return CompleteResponse{Type: KindComplete, ID: id, Suggestion: suggestion, Warning: warning}
}

// NLResponse answers a natural-language command request.
type NLResponse struct {
	Type    Kind       `json:"type"`
	ID      string     `json:"request_id"`
	Command string     `json:"command"`
	Warning string     `json:"warning,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

func (NLResponse) response() {}

// NewNLResponse builds a successful natural-language answer.
func NewNLResponse(id, command, warning string) NLResponse {
	return NLResponse{Type: KindNL, ID: id, Command: command, Warning: warning}
}

// NewNLError builds a failed natural-language answer.
func NewNLError(id string, errInfo ErrorInfo) NLResponse {
	return NLResponse{Type: KindNL, ID: id, Error: &errInfo}
}

// ErrorCorrectResponse answers an error-correction request.
type ErrorCorrectResponse struct {
	Type       Kind   `json:"type"`
	ID         string `json:"request_id"`
	Suggestion string `json:"suggestion"`
}

func (ErrorCorrectResponse) response() {}

// NewErrorCorrectResponse builds an error-correction answer.
func NewErrorCorrectResponse(id, suggestion string) ErrorCorrectResponse {
	return ErrorCorrectResponse{Type: KindErrorCorrect, ID: id, Suggestion: suggestion}
}

// HistoryMatch is one ranked history search result.
type HistoryMatch struct {
	// Command is the matched history entry.
	Command string `json:"command"`

	// Score is the provider-assigned relevance in [0, 1].
	Score float64 `json:"score"`
}

// HistorySearchResponse answers a history search request. Results is never
// nil on success so the client always sees a JSON array.
type HistorySearchResponse struct {
	Type    Kind           `json:"type"`
	ID      string         `json:"request_id"`
	Results []HistoryMatch `json:"results"`
	Error   *ErrorInfo     `json:"error,omitempty"`
}

func (HistorySearchResponse) response() {}

// NewHistorySearchResponse builds a successful history search answer.
func NewHistorySearchResponse(id string, results []HistoryMatch) HistorySearchResponse {
	if results == nil {
		results = []HistoryMatch{}
	}
	return HistorySearchResponse{Type: KindHistorySearch, ID: id, Results: results}
}

// NewHistorySearchError builds a failed history search answer.
func NewHistorySearchError(id string, errInfo ErrorInfo) HistorySearchResponse {
	return HistorySearchResponse{Type: KindHistorySearch, ID: id, Results: []HistoryMatch{}, Error: &errInfo}
}

// ReloadConfigResponse acknowledges a configuration reload.
type ReloadConfigResponse struct {
	Type    Kind   `json:"type"`
	ID      string `json:"request_id"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func (ReloadConfigResponse) response() {}

// NewReloadConfigResponse builds a reload acknowledgement.
func NewReloadConfigResponse(id string, ok bool, message string) ReloadConfigResponse {
	return ReloadConfigResponse{Type: KindReloadConfig, ID: id, OK: ok, Message: message}
}

// ErrorResponse answers a message that could not be routed to a variant,
// such as malformed JSON or an unknown type.
type ErrorResponse struct {
	Type  Kind      `json:"type"`
	ID    string    `json:"request_id,omitempty"`
	Error ErrorInfo `json:"error"`
}

func (ErrorResponse) response() {}

// NewErrorResponse builds a protocol-level error answer.
func NewErrorResponse(id string, errInfo ErrorInfo) ErrorResponse {
	return ErrorResponse{Type: "error", ID: id, Error: errInfo}
}

// EncodeResponse marshals a response followed by a newline, ready to write
// to the socket.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
