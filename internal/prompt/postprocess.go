// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package prompt

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var fenceRE = regexp.MustCompile("(?s)^```(?:\\w*)\\n?(.*?)```$")

// StripCodeFences removes a markdown code fence wrapping the whole response.
// Models wrap shell commands in fences despite instructions not to.
func StripCodeFences(text string) string {
	if m := fenceRE.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// FirstLine reduces a multiline response to its first line. Completions are
// inserted inline at the cursor, so anything past the first newline would
// corrupt the command line.
func FirstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimRight(text[:i], " \t\r\n")
	}
	return text
}

// CleanCompletion post-processes a raw completion: trailing whitespace goes,
// code fences go, and only the first line survives. Leading whitespace is
// preserved because it may be the separator the completion needs.
func CleanCompletion(text string) string {
	text = strings.TrimRight(text, " \t\r\n")
	text = StripCodeFences(text)
	return FirstLine(text)
}

// EnsureLeadingSpace inserts a space between buffer and suggestion when the
// two would otherwise fuse into one token, e.g. "ffmpeg" + "-i" must become
// "ffmpeg -i", not "ffmpeg-i".
func EnsureLeadingSpace(buffer, suggestion string) string {
	if suggestion == "" || buffer == "" {
		return suggestion
	}
	last, _ := utf8.DecodeLastRuneInString(buffer)
	first, _ := utf8.DecodeRuneInString(suggestion)
	if !unicode.IsSpace(last) && !unicode.IsSpace(first) && strings.ContainsRune("-|>&;<()", first) {
		return " " + suggestion
	}
	return suggestion
}
