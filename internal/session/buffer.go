// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package session keeps a bounded rolling log of recent command/output pairs.
// The buffer feeds session-level context into proactive suggestions and is
// deliberately ephemeral: it lives in memory and dies with the process.
package session

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// DefaultCapacity is the number of command/output pairs retained.
	DefaultCapacity = 20

	// maxOutputLines bounds how much of a command's output is stored.
	// Only the tail survives; that is where errors and results live.
	maxOutputLines = 20
)

// Entry is one recorded command with the tail of its output.
type Entry struct {
	// Command is the command line as the user ran it.
	Command string `json:"command"`

	// Output is the command's captured output, truncated to its last lines.
	Output string `json:"output"`

	// Seq increases monotonically per process and orders entries.
	Seq uint64 `json:"seq"`
}

// Buffer is a fixed-capacity ring of session entries. Appending to a full
// buffer evicts the oldest entry. All methods are safe for concurrent use.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int // index of the next write
	count   int // number of live entries
	seq     uint64
}

// NewBuffer creates a Buffer holding up to capacity entries. A capacity of
// zero or below falls back to DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries: make([]Entry, capacity),
	}
}

// Append records a command and its output, truncating the output to its
// last lines. The oldest entry is overwritten once the buffer is full.
func (b *Buffer) Append(command, output string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	b.entries[b.head] = Entry{
		Command: command,
		Output:  truncateTail(output, maxOutputLines),
		Seq:     b.seq,
	}
	b.head = (b.head + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

// Snapshot returns the buffered entries oldest to newest.
func (b *Buffer) Snapshot() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, b.count)
	start := (b.head - b.count + len(b.entries)) % len(b.entries)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(start+i)%len(b.entries)]
	}
	return out
}

// FormatForPrompt renders the buffer as numbered context, oldest first.
// Labels count down so [1] is always the most recent command, whatever the
// buffer's fill level. Output lines are indented beneath their command.
func (b *Buffer) FormatForPrompt() string {
	entries := b.Snapshot()
	if len(entries) == 0 {
		return ""
	}

	var parts []string
	for i, entry := range entries {
		parts = append(parts, fmt.Sprintf("[%d] %s", len(entries)-i, entry.Command))
		if strings.TrimSpace(entry.Output) == "" {
			continue
		}
		for _, line := range strings.Split(entry.Output, "\n") {
			parts = append(parts, "    "+line)
		}
	}
	return strings.Join(parts, "\n")
}

// Len returns the number of live entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.entries)
}

// Clear drops every entry. Sequence numbers keep counting up so ordering
// stays unambiguous across a clear.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make([]Entry, len(b.entries))
	b.head = 0
	b.count = 0
}

// truncateTail keeps the last n lines of s, dropping a trailing newline
// before counting so it does not produce a phantom empty line.
func truncateTail(s string, n int) string {
	if s == "" || n <= 0 {
		return ""
	}
	trimmed := strings.TrimSuffix(s, "\n")
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= n {
		return trimmed
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
