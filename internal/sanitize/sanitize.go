// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sanitize scrubs secrets from text headed to a provider and flags
// destructive commands. It runs at the daemon boundary so the request core
// only ever sees clean fields.
package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
)

type dangerousPattern struct {
	re     *regexp.Regexp
	reason string
}

// Patterns that indicate destructive commands. The match is advisory: the
// daemon never blocks a command, it only attaches a warning.
var dangerousPatterns = []dangerousPattern{
	{regexp.MustCompile(`(?i)\brm\s+(-[a-zA-Z]*f[a-zA-Z]*\s+|--force\s+).*(/|~|\$HOME)`), "Recursive force-delete on important path"},
	{regexp.MustCompile(`\brm\s+-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*\s+/\s*$`), "rm -rf /"},
	{regexp.MustCompile(`\bmkfs\b`), "Filesystem format"},
	{regexp.MustCompile(`\bdd\s+if=`), "Raw disk write"},
	{regexp.MustCompile(`:\(\)\s*\{\s*:\|:&\s*\}\s*;`), "Fork bomb"},
	{regexp.MustCompile(`\bchmod\s+(-[a-zA-Z]*R[a-zA-Z]*\s+)?[0-7]*777\s+/`), "Recursive chmod 777 on root"},
	{regexp.MustCompile(`\bchown\s+-[a-zA-Z]*R`), "Recursive chown"},
	{regexp.MustCompile(`>\s*/dev/sd[a-z]`), "Direct write to block device"},
	{regexp.MustCompile(`(?i)\bcurl\b.*\|\s*(sudo\s+)?(ba)?sh`), "Pipe curl to shell"},
	{regexp.MustCompile(`(?i)\bwget\b.*\|\s*(sudo\s+)?(ba)?sh`), "Pipe wget to shell"},
}

// Patterns stripped from history and output before they leave the machine.
// Patterns with two capture groups keep their first group (the key name)
// and redact the rest; the others are redacted whole.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(sk-[a-zA-Z0-9_-]{20,})`),
	regexp.MustCompile(`(?i)(sk-ant-[a-zA-Z0-9_-]{20,})`),
	regexp.MustCompile(`(?i)(ghp_[a-zA-Z0-9]{36,})`),
	regexp.MustCompile(`(?i)(gho_[a-zA-Z0-9]{36,})`),
	regexp.MustCompile(`(?i)(xoxb-[a-zA-Z0-9-]+)`),
	regexp.MustCompile(`(?i)(xoxp-[a-zA-Z0-9-]+)`),
	regexp.MustCompile(`(?i)(api[_-]?key\s*[=:]\s*)['"]?([a-zA-Z0-9_-]{16,})['"]?`),
	regexp.MustCompile(`(?i)(token\s*[=:]\s*)['"]?([a-zA-Z0-9_-]{16,})['"]?`),
	regexp.MustCompile(`(?i)(password\s*[=:]\s*)['"]?(\S+)['"]?`),
	regexp.MustCompile(`(?i)(secret\s*[=:]\s*)['"]?([a-zA-Z0-9_-]{16,})['"]?`),
	regexp.MustCompile(`(?i)(AKIA[A-Z0-9]{16})`),
	regexp.MustCompile(`(?i)(Bearer\s+)[a-zA-Z0-9._-]{20,}`),
}

// CheckDangerous returns a warning when the command matches a destructive
// pattern, or an empty string when it looks safe.
func CheckDangerous(command string) string {
	for _, p := range dangerousPatterns {
		if p.re.MatchString(command) {
			return "⚠️  " + p.reason
		}
	}
	return ""
}

// Text removes secrets from text before it is sent to a provider.
func Text(text string) string {
	result := text
	for _, re := range secretPatterns {
		if re.NumSubexp() >= 2 {
			result = re.ReplaceAllString(result, "${1}[REDACTED]")
		} else {
			result = re.ReplaceAllString(result, "[REDACTED]")
		}
	}
	return result
}

// History sanitizes each entry of a history slice.
func History(history []string) []string {
	if history == nil {
		return nil
	}
	out := make([]string, len(history))
	for i, cmd := range history {
		out[i] = Text(cmd)
	}
	return out
}

// Blocklisted reports whether the command's program is on the capture
// blocklist. Output of interactive programs is noise at best and screen
// garbage at worst, so it never enters the session context.
func Blocklisted(command string, blocklist []string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	program := filepath.Base(fields[0])
	for _, blocked := range blocklist {
		if program == blocked {
			return true
		}
	}
	return false
}
