// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package prompt builds the system and user messages sent to providers.
// Every template instructs the model to return ONLY the completion, command,
// or fix, with no explanation and no markdown, and an empty string if unsure.
package prompt

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/termbridge/termbridge/internal/protocol"
)

// Completions and command generation get different system prompts. Treating
// completion as pure text continuation keeps models from "helpfully"
// rewriting what the user already typed.
var (
	autocompleteSystem = fmt.Sprintf(`You are a shell command autocomplete engine on %s.
You will receive partial command-line input. Your job is to continue the text from exactly where it left off — like pressing Tab.
RULES:
- Output ONLY the characters that come after the provided text
- This is pure text continuation, not instruction following
- Include leading whitespace when the next token is a new argument
- Do NOT repeat any part of the input
- Do NOT explain, comment, or wrap in markdown
- If no useful continuation exists, output nothing`, osInfo())

	commandSystem = fmt.Sprintf(`You are an expert shell assistant. The user is on %s.
You help with shell commands — corrections, generation, and search.
RULES:
- Return ONLY the requested output (command, fix, etc.)
- NO explanations, NO markdown, NO commentary
- If unsure, return an empty string
- Never suggest commands that would be destructive without clear user intent
- Preserve the user's command style (quoting, flag style, etc.)`, osInfo())
)

// AutocompleteSystem returns the system prompt for buffer completion.
func AutocompleteSystem() string {
	return autocompleteSystem
}

// CommandSystem returns the system prompt for command generation, error
// correction, and history search.
func CommandSystem() string {
	return commandSystem
}

// ProactiveSystem returns the command system prompt extended with recent
// session context when any is available.
func ProactiveSystem(sessionText string) string {
	if sessionText == "" {
		return commandSystem
	}
	return commandSystem + "\n\nRecent session:\n" + sessionText
}

// AutocompleteUser builds the user message for a buffer completion.
func AutocompleteUser(req *protocol.CompleteRequest) string {
	return fmt.Sprintf(`Context: %s shell in %s
Recent commands:
%s
Last exit: %d

Complete: %s`, shellOr(req.Shell), req.Cwd, historyTail(req.History, 5), req.ExitStatus, req.Buffer)
}

// ProactiveUser builds the user message for a proactive suggestion, where
// the buffer is empty and the last command's output carries the signal.
func ProactiveUser(req *protocol.CompleteRequest) string {
	return fmt.Sprintf(`Shell: %s
Working directory: %s
Recent commands:
%s

Last command: %s
Its output (last 50 lines):
%s

The user's prompt is empty. Suggest the single most likely next command they would want to run.
Return ONLY the command. Return an empty string if nothing is clearly suggested.`,
		shellOr(req.Shell), req.Cwd, historyTail(req.History, 5), req.LastCommand, req.LastOutput)
}

// NLUser builds the user message for natural language command construction.
func NLUser(req *protocol.NLRequest) string {
	context := ""
	if req.Buffer != "" {
		context = fmt.Sprintf("\nPartial command already typed: %q", req.Buffer)
	}
	return fmt.Sprintf(`Shell: %s
Working directory: %s
Recent commands:
%s
%s
User request: %s

Generate ONLY the shell command. No explanation.`,
		shellOr(req.Shell), req.Cwd, historyTail(req.History, 10), context, req.Prompt)
}

// ErrorCorrectUser builds the user message for fixing a failed command.
func ErrorCorrectUser(req *protocol.ErrorCorrectRequest) string {
	return fmt.Sprintf(`Shell: %s
Working directory: %s

Failed command: %s
Exit status: %d
Error output:
%s

Return ONLY the corrected command. If you can't determine the fix, return an empty string.`,
		shellOr(req.Shell), req.Cwd, req.FailedCommand, req.ExitStatus, req.Stderr)
}

// HistorySearchUser builds the user message for semantic history search.
// The full history goes in; ranking is the model's job.
func HistorySearchUser(req *protocol.HistorySearchRequest) string {
	return fmt.Sprintf(`Shell: %s

User is searching their history for: %s

Shell history (most recent last):
%s

Return a JSON array of the most relevant commands, ranked by relevance.
Format: [{"command": "...", "score": 0.95}, ...]
Return at most 10 results. Only include commands that match the user's intent.
If nothing matches, return an empty array: []`,
		shellOr(req.Shell), req.Query, strings.Join(req.History, "\n"))
}

// historyTail joins the last n history entries, or "(none)" when empty.
func historyTail(history []string, n int) string {
	if len(history) == 0 {
		return "(none)"
	}
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return strings.Join(history, "\n")
}

func shellOr(shell string) string {
	if shell == "" {
		return "zsh"
	}
	return shell
}

// osInfo returns a short OS identifier for the system prompts.
func osInfo() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS"
	case "linux":
		if name := linuxDistro(); name != "" {
			return "Linux (" + name + ")"
		}
		return "Linux"
	default:
		return runtime.GOOS
	}
}

func linuxDistro() string {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if name, ok := strings.CutPrefix(line, "NAME="); ok {
			return strings.Trim(strings.TrimSpace(name), `"`)
		}
	}
	return ""
}
