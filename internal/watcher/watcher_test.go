// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, path string, debounce time.Duration, reload func() error) {
	t.Helper()

	w := New(path, reload)
	w.debounce = debounce

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Errorf("watcher did not stop")
		}
	})

	// Give the fsnotify registration a moment; Add has returned by the time
	// Run logs, but Run starts asynchronously here.
	time.Sleep(50 * time.Millisecond)
}

func TestReloadOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug: false\n"), 0o600))

	reloaded := make(chan struct{}, 8)
	startWatcher(t, path, 20*time.Millisecond, func() error {
		reloaded <- struct{}{}
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("debug: true\n"), 0o600))

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("reload never fired after write")
	}
}

func TestAtomicSaveTriggersReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug: false\n"), 0o600))

	reloaded := make(chan struct{}, 8)
	startWatcher(t, path, 20*time.Millisecond, func() error {
		reloaded <- struct{}{}
		return nil
	})

	// Editors save via temp file + rename over the original.
	tmp := filepath.Join(dir, ".config.yaml.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("debug: true\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatal("reload never fired after atomic save")
	}
}

func TestBurstCollapsesToOneReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	var count atomic.Int32
	startWatcher(t, path, 80*time.Millisecond, func() error {
		count.Add(1)
		return nil
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return count.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// No further reloads once the burst has settled.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), count.Load())
}

func TestSiblingFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	var count atomic.Int32
	startWatcher(t, path, 20*time.Millisecond, func() error {
		count.Add(1)
		return nil
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("unrelated"), 0o600))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), count.Load())
}

func TestReloadErrorKeepsWatching(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	var count atomic.Int32
	startWatcher(t, path, 20*time.Millisecond, func() error {
		count.Add(1)
		return os.ErrInvalid
	})

	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o600))
	require.Eventually(t, func() bool {
		return count.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The failed reload must not have killed the loop.
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("a: 3\n"), 0o600))
	require.Eventually(t, func() bool {
		return count.Load() == 2
	}, 2*time.Second, 10*time.Millisecond)
}
