// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package gateway

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/termbridge/termbridge/internal/cache"
	"github.com/termbridge/termbridge/internal/config"
	"github.com/termbridge/termbridge/internal/prompt"
	"github.com/termbridge/termbridge/internal/protocol"
	"github.com/termbridge/termbridge/internal/provider"
	"github.com/termbridge/termbridge/internal/sanitize"
)

// Handle routes one inbound request and always produces a response. It may
// be called concurrently for distinct requests; each call suspends only on
// its own adapter call and retry backoff.
func (g *Gateway) Handle(ctx context.Context, req protocol.Request) protocol.Response {
	switch r := req.(type) {
	case *protocol.ReloadConfigRequest:
		return g.handleReloadConfig(r)
	case *protocol.CompleteRequest:
		return g.handleComplete(ctx, r)
	case *protocol.NLRequest:
		return g.handleNL(ctx, r)
	case *protocol.ErrorCorrectRequest:
		return g.handleErrorCorrect(ctx, r)
	case *protocol.HistorySearchRequest:
		return g.handleHistorySearch(ctx, r)
	default:
		return protocol.NewErrorResponse(req.RequestID(), protocol.ErrorInfo{
			Kind:    protocol.ErrKindBadRequest,
			Message: "unsupported request kind " + string(req.Kind()),
		})
	}
}

// handleReloadConfig bypasses every gate.
func (g *Gateway) handleReloadConfig(req *protocol.ReloadConfigRequest) protocol.Response {
	if err := g.Reload(); err != nil {
		log.Errorf("gateway: reload failed: %v", err)
		return protocol.NewReloadConfigResponse(req.ID, false, err.Error())
	}
	return protocol.NewReloadConfigResponse(req.ID, true, "configuration reloaded")
}

// handleComplete serves both the typed-buffer completion and its proactive
// variant (empty buffer, non-empty last output). Failures degrade to an
// empty suggestion; the input surface treats that as "nothing to show".
func (g *Gateway) handleComplete(ctx context.Context, req *protocol.CompleteRequest) protocol.Response {
	g.markLatest(protocol.KindComplete, req.ID)
	cfg, adapter := g.snapshot()

	proactive := req.Proactive()
	if proactive {
		if !cfg.Daemon.ProactiveSuggestions {
			return protocol.NewCompleteResponse(req.ID, "", "")
		}
		if sanitize.Blocklisted(req.LastCommand, cfg.Daemon.CaptureBlocklist) {
			log.Debugf("gateway: proactive suggestion skipped for blocklisted command")
			return protocol.NewCompleteResponse(req.ID, "", "")
		}
	}

	var key string
	if proactive {
		key = cache.Key("proactive", req.LastCommand, req.Cwd, req.LastOutput)
	} else {
		key = cache.Key("autocomplete", req.Buffer, req.Cwd)
	}

	raw, hit := g.cache.Get(key)
	if !hit {
		if denied := g.admit(cfg.Provider.Name); denied != nil {
			return protocol.NewCompleteResponse(req.ID, "", "")
		}
		if proactive && g.breakers.SlowLink(cfg.Provider.Name) {
			g.breakers.Release(cfg.Provider.Name)
			log.Debugf("gateway: slow link, proactive suggestion suppressed")
			return protocol.NewCompleteResponse(req.ID, "", "")
		}

		var system, user string
		if proactive {
			g.session.Append(req.LastCommand, req.LastOutput)
			system = prompt.ProactiveSystem(g.session.FormatForPrompt())
			user = prompt.ProactiveUser(req)
		} else {
			system = prompt.AutocompleteSystem()
			user = prompt.AutocompleteUser(req)
		}

		var errInfo *protocol.ErrorInfo
		raw, errInfo = g.callAdapter(ctx, adapter, protocol.KindComplete, provider.Params{
			System: system,
			User:   user,
			Model:  cfg.Provider.EffectiveAutocompleteModel(),
		})
		if errInfo != nil {
			return protocol.NewCompleteResponse(req.ID, "", "")
		}
		if raw != "" {
			g.cache.Put(key, raw, g.cacheTTL(cfg))
		}
	}

	// The cache stores the raw provider text; post-processing runs on both
	// the fresh and the cached path.
	suggestion := raw
	if !proactive {
		suggestion = prompt.EnsureLeadingSpace(req.Buffer, suggestion)
	}
	suggestion = prompt.CleanCompletion(suggestion)

	if g.superseded(protocol.KindComplete, req.ID) {
		return protocol.NewCompleteResponse(req.ID, "", "")
	}
	return protocol.NewCompleteResponse(req.ID, suggestion, sanitize.CheckDangerous(req.Buffer+suggestion))
}

// handleNL builds a shell command from a natural-language prompt. This is a
// user-initiated kind: the caller asked and is waiting, so failures surface
// an error payload instead of degrading silently.
func (g *Gateway) handleNL(ctx context.Context, req *protocol.NLRequest) protocol.Response {
	g.markLatest(protocol.KindNL, req.ID)
	if req.Prompt == "" {
		return protocol.NewNLResponse(req.ID, "", "")
	}
	cfg, adapter := g.snapshot()

	key := cache.Key("nl", req.Prompt, req.Cwd)
	command, hit := g.cache.Get(key)
	if !hit {
		if denied := g.admit(cfg.Provider.Name); denied != nil {
			return protocol.NewNLError(req.ID, *denied)
		}
		var errInfo *protocol.ErrorInfo
		command, errInfo = g.callAdapter(ctx, adapter, protocol.KindNL, provider.Params{
			System: prompt.CommandSystem(),
			User:   prompt.NLUser(req),
			Model:  cfg.Provider.Model,
		})
		if errInfo != nil {
			return protocol.NewNLError(req.ID, *errInfo)
		}
		if command != "" {
			g.cache.Put(key, command, g.cacheTTL(cfg))
		}
	}

	if g.superseded(protocol.KindNL, req.ID) {
		return protocol.NewNLError(req.ID, protocol.ErrorInfo{
			Kind:    protocol.ErrKindCancelled,
			Message: "superseded by a newer request",
		})
	}
	var warning string
	if command != "" {
		warning = sanitize.CheckDangerous(command)
	}
	return protocol.NewNLResponse(req.ID, command, warning)
}

// handleErrorCorrect suggests a fixed version of a failed command. Like
// completion it is speculative and fails silently.
func (g *Gateway) handleErrorCorrect(ctx context.Context, req *protocol.ErrorCorrectRequest) protocol.Response {
	g.markLatest(protocol.KindErrorCorrect, req.ID)
	if req.FailedCommand == "" {
		return protocol.NewErrorCorrectResponse(req.ID, "")
	}
	cfg, adapter := g.snapshot()

	key := cache.Key("error_correct", req.FailedCommand, req.Stderr, strconv.Itoa(req.ExitStatus))
	raw, hit := g.cache.Get(key)
	if !hit {
		if denied := g.admit(cfg.Provider.Name); denied != nil {
			return protocol.NewErrorCorrectResponse(req.ID, "")
		}
		var errInfo *protocol.ErrorInfo
		raw, errInfo = g.callAdapter(ctx, adapter, protocol.KindErrorCorrect, provider.Params{
			System: prompt.CommandSystem(),
			User:   prompt.ErrorCorrectUser(req),
			Model:  cfg.Provider.EffectiveAutocompleteModel(),
		})
		if errInfo != nil {
			return protocol.NewErrorCorrectResponse(req.ID, "")
		}
		if raw != "" {
			g.cache.Put(key, raw, g.cacheTTL(cfg))
		}
	}

	if g.superseded(protocol.KindErrorCorrect, req.ID) {
		return protocol.NewErrorCorrectResponse(req.ID, "")
	}
	return protocol.NewErrorCorrectResponse(req.ID, strings.TrimRight(raw, " \t\r\n"))
}

// handleHistorySearch ranks history entries against a natural-language
// query. User-initiated; failures surface an error payload.
func (g *Gateway) handleHistorySearch(ctx context.Context, req *protocol.HistorySearchRequest) protocol.Response {
	g.markLatest(protocol.KindHistorySearch, req.ID)
	if req.Query == "" || len(req.History) == 0 {
		return protocol.NewHistorySearchResponse(req.ID, nil)
	}
	cfg, adapter := g.snapshot()

	key := cache.Key("history_search", req.Query, strings.Join(req.History, "\n"))
	raw, hit := g.cache.Get(key)
	if !hit {
		if denied := g.admit(cfg.Provider.Name); denied != nil {
			return protocol.NewHistorySearchError(req.ID, *denied)
		}
		var errInfo *protocol.ErrorInfo
		raw, errInfo = g.callAdapter(ctx, adapter, protocol.KindHistorySearch, provider.Params{
			System: prompt.CommandSystem(),
			User:   prompt.HistorySearchUser(req),
			Model:  cfg.Provider.Model,
		})
		if errInfo != nil {
			return protocol.NewHistorySearchError(req.ID, *errInfo)
		}
		if raw != "" {
			g.cache.Put(key, raw, g.cacheTTL(cfg))
		}
	}

	if g.superseded(protocol.KindHistorySearch, req.ID) {
		return protocol.NewHistorySearchError(req.ID, protocol.ErrorInfo{
			Kind:    protocol.ErrKindCancelled,
			Message: "superseded by a newer request",
		})
	}
	return protocol.NewHistorySearchResponse(req.ID, parseHistoryMatches(raw))
}

// admit runs the breaker and rate-limiter gates in order. A non-nil result
// names the reason the request may not reach the adapter. On a pass the
// caller owns the breaker admission and must resolve it with an adapter
// call or a Release.
func (g *Gateway) admit(providerName string) *protocol.ErrorInfo {
	if !g.breakers.Admit(providerName) {
		return &protocol.ErrorInfo{
			Kind:    protocol.ErrKindOffline,
			Message: "provider offline: circuit open",
		}
	}
	if !g.limiter.Allow() {
		g.breakers.Release(providerName)
		return &protocol.ErrorInfo{
			Kind:    protocol.ErrKindLocalRateLimited,
			Message: "local rate limit exceeded",
		}
	}
	return nil
}

// callAdapter runs one adapter call under the kind's policy, retrying when
// the policy allows. Every completed attempt updates the provider's health
// record; retries re-check breaker admission so a failed half-open probe
// stops the loop instead of burning the fresh cooldown.
func (g *Gateway) callAdapter(ctx context.Context, adapter provider.Adapter, kind protocol.Kind, params provider.Params) (string, *protocol.ErrorInfo) {
	pol, ok := g.policies[kind]
	if !ok {
		pol = Policy{Timeout: 3 * time.Second}
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		g.mu.RLock()
		est := g.estimator
		g.mu.RUnlock()
		log.Debugf("gateway: %s prompt ~%d tokens, model %s",
			kind, est.EstimateTokens(params.System+"\n"+params.User), params.Model)
	}

	name := adapter.Name()
	var last *provider.Error
	for attempt := 0; attempt <= pol.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", &protocol.ErrorInfo{Kind: protocol.ErrKindCancelled, Message: "request cancelled"}
			case <-time.After(pol.RetryDelay):
			}
			if !g.breakers.Admit(name) {
				return "", &protocol.ErrorInfo{
					Kind:    protocol.ErrKindOffline,
					Message: "provider offline: circuit open",
				}
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, pol.Timeout)
		start := time.Now()
		text, err := adapter.Complete(callCtx, params)
		cancel()

		if err == nil {
			g.breakers.RecordSuccess(name, time.Since(start))
			return text, nil
		}

		last = asProviderError(err)
		if last.Kind == protocol.ErrKindCancelled {
			// The caller went away mid-call. That says nothing about
			// provider health, so resolve the admission without an outcome.
			g.breakers.Release(name)
			return "", &protocol.ErrorInfo{Kind: protocol.ErrKindCancelled, Message: last.Message}
		}
		g.breakers.RecordFailure(name)
		log.Debugf("gateway: %s attempt %d/%d failed: %v", kind, attempt+1, pol.Retries+1, err)
	}
	return "", &protocol.ErrorInfo{Kind: last.Kind, Message: last.Message}
}

func asProviderError(err error) *provider.Error {
	var perr *provider.Error
	if errors.As(err, &perr) {
		return perr
	}
	return &provider.Error{Kind: protocol.ErrKindProvider, Message: err.Error()}
}

// parseHistoryMatches decodes the model's JSON array of ranked matches. The
// model's output is untrusted: anything that does not decode as a list of
// matches yields no results rather than an error.
func parseHistoryMatches(text string) []protocol.HistoryMatch {
	text = strings.TrimSpace(prompt.StripCodeFences(text))
	var decoded []protocol.HistoryMatch
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		log.Debugf("gateway: history search response is not a JSON list: %v", err)
		return nil
	}
	out := decoded[:0]
	for _, m := range decoded {
		if m.Command != "" {
			out = append(out, m)
		}
	}
	return out
}

// markLatest records req as the newest of its kind. Requests without an id
// opt out of latest-wins tracking.
func (g *Gateway) markLatest(kind protocol.Kind, id string) {
	if id == "" {
		return
	}
	g.latestMu.Lock()
	g.latest[kind] = id
	g.latestMu.Unlock()
}

// superseded reports whether a newer request of the same kind arrived while
// this one was being served. The superseded request's payload is withheld
// from the caller, but the bookkeeping its adapter call already performed
// stands.
func (g *Gateway) superseded(kind protocol.Kind, id string) bool {
	if id == "" {
		return false
	}
	g.latestMu.Lock()
	defer g.latestMu.Unlock()
	return g.latest[kind] != id
}

func (g *Gateway) cacheTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Gateway.CacheTTLSeconds) * time.Second
}
