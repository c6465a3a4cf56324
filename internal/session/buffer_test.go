// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestAppendAndSnapshotOrder(t *testing.T) {
	b := NewBuffer(20)

	b.Append("ls", "a.txt\nb.txt")
	b.Append("git status", "clean")
	b.Append("make", "ok")

	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	wantCmds := []string{"ls", "git status", "make"}
	for i, want := range wantCmds {
		if snap[i].Command != want {
			t.Fatalf("snapshot[%d].Command = %q, want %q", i, snap[i].Command, want)
		}
	}
	if !(snap[0].Seq < snap[1].Seq && snap[1].Seq < snap[2].Seq) {
		t.Fatalf("sequence numbers not increasing: %d %d %d", snap[0].Seq, snap[1].Seq, snap[2].Seq)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	b := NewBuffer(20)

	for i := 0; i < 21; i++ {
		b.Append(fmt.Sprintf("cmd-%d", i), "out")
	}

	if b.Len() != 20 {
		t.Fatalf("len after 21 appends = %d, want 20", b.Len())
	}

	snap := b.Snapshot()
	for _, e := range snap {
		if e.Command == "cmd-0" {
			t.Fatal("oldest entry still present after 21st append")
		}
	}
	if snap[0].Command != "cmd-1" {
		t.Fatalf("oldest surviving entry = %q, want cmd-1", snap[0].Command)
	}
	if snap[19].Command != "cmd-20" {
		t.Fatalf("newest entry = %q, want cmd-20", snap[19].Command)
	}
}

func TestOutputTruncatedToTail(t *testing.T) {
	b := NewBuffer(20)

	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf("line-%d", i))
	}
	b.Append("cat big.log", strings.Join(lines, "\n")+"\n")

	got := b.Snapshot()[0].Output
	gotLines := strings.Split(got, "\n")
	if len(gotLines) != 20 {
		t.Fatalf("stored output has %d lines, want 20", len(gotLines))
	}
	if gotLines[0] != "line-30" || gotLines[19] != "line-49" {
		t.Fatalf("stored tail = %q..%q, want line-30..line-49", gotLines[0], gotLines[19])
	}
}

func TestShortOutputKeptVerbatim(t *testing.T) {
	b := NewBuffer(20)
	b.Append("echo hi", "hi\n")
	if got := b.Snapshot()[0].Output; got != "hi" {
		t.Fatalf("stored output = %q, want hi", got)
	}
}

func TestClear(t *testing.T) {
	b := NewBuffer(20)
	b.Append("ls", "out")
	before := b.Snapshot()[0].Seq

	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("len after clear = %d, want 0", b.Len())
	}

	b.Append("pwd", "/")
	after := b.Snapshot()[0].Seq
	if after <= before {
		t.Fatalf("seq did not keep counting across clear: %d then %d", before, after)
	}
}

func TestFormatForPrompt(t *testing.T) {
	b := NewBuffer(20)
	if got := b.FormatForPrompt(); got != "" {
		t.Fatalf("empty buffer formatted to %q", got)
	}

	b.Append("make build", "ok\nwrote bin/app")
	b.Append("git status", "")
	b.Append("git push", "to origin")

	want := strings.Join([]string{
		"[3] make build",
		"    ok",
		"    wrote bin/app",
		"[2] git status",
		"[1] git push",
		"    to origin",
	}, "\n")
	if got := b.FormatForPrompt(); got != want {
		t.Fatalf("formatted buffer:\n%s\nwant:\n%s", got, want)
	}
}

func TestConcurrentAppend(t *testing.T) {
	b := NewBuffer(20)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Append(fmt.Sprintf("cmd-%d-%d", g, i), "out")
			}
		}(g)
	}
	wg.Wait()

	if b.Len() != 20 {
		t.Fatalf("len after concurrent appends = %d, want 20", b.Len())
	}

	snap := b.Snapshot()
	for i := 1; i < len(snap); i++ {
		if snap[i].Seq <= snap[i-1].Seq {
			t.Fatalf("snapshot out of order at %d: %d then %d", i, snap[i-1].Seq, snap[i].Seq)
		}
	}
}
