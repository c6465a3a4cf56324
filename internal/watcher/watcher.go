// Copyright 2026 The termbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package watcher reloads the daemon configuration when the file changes on
// disk, so edits take effect without restarting or poking the API.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher triggers a reload callback when the watched file changes.
type Watcher struct {
	path     string
	reload   func() error
	debounce time.Duration
}

// New builds a Watcher for the given file. The reload callback runs on the
// watcher's goroutine after changes settle.
func New(path string, reload func() error) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		reload:   reload,
		debounce: defaultDebounce,
	}
}

// Run watches until the context is cancelled. Reload failures are logged,
// not fatal: a half-saved config file must not take the watcher down.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	// Watch the directory rather than the file: editors save by renaming a
	// temp file over the original, and a watch on the old inode goes quiet
	// after the first save.
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Infof("watcher: watching %s", w.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// Collapse the burst of events a single save produces into one
			// reload.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			log.Infof("watcher: %s changed, reloading", w.path)
			if err := w.reload(); err != nil {
				log.Errorf("watcher: reload: %v", err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watcher: %v", err)
		}
	}
}
