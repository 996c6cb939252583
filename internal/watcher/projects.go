// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeType classifies a filesystem change.
type ChangeType string

const (
	ChangeAdd       ChangeType = "add"
	ChangeModify    ChangeType = "change"
	ChangeUnlink    ChangeType = "unlink"
	ChangeAddDir    ChangeType = "addDir"
	ChangeUnlinkDir ChangeType = "unlinkDir"
)

// Change is a settled burst of filesystem changes.
type Change struct {
	Type  ChangeType `json:"changeType"`
	Path  string     `json:"changedFile"`
	Count int        `json:"count"`
}

// DefaultIgnoreDirs are never descended into.
var DefaultIgnoreDirs = []string{".git", "node_modules", "dist", "build", ".cache", "__pycache__"}

const burstKey = "projects"

// ProjectsWatcher watches the session log root recursively. Every change to
// a .jsonl file or a directory is funneled into a single debounced callback,
// so a burst of writes across many files produces one notification.
type ProjectsWatcher struct {
	root      string
	ignore    map[string]bool
	onChange  func(Change)
	debouncer *Debouncer

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	dirs    map[string]bool
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewProjectsWatcher creates a watcher over root. Nothing is watched until
// Start.
func NewProjectsWatcher(root string, ignoreDirs []string, debounce time.Duration, onChange func(Change)) *ProjectsWatcher {
	if len(ignoreDirs) == 0 {
		ignoreDirs = DefaultIgnoreDirs
	}
	ignore := make(map[string]bool, len(ignoreDirs))
	for _, d := range ignoreDirs {
		ignore[d] = true
	}
	return &ProjectsWatcher{
		root:      filepath.Clean(root),
		ignore:    ignore,
		onChange:  onChange,
		debouncer: NewDebouncer(debounce),
		dirs:      make(map[string]bool),
		closeCh:   make(chan struct{}),
	}
}

// Start registers watches on the existing tree and begins processing
// events. The tree present at start is not reported as a change.
func (w *ProjectsWatcher) Start() error {
	if err := os.MkdirAll(w.root, 0755); err != nil {
		return fmt.Errorf("create watch root: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		fsw.Close()
		return fmt.Errorf("watcher is closed")
	}
	w.watcher = fsw
	w.mu.Unlock()

	if _, err := w.addTree(w.root); err != nil {
		fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.processEvents()
	log.Printf("watcher: watching %s (%d dirs)", w.root, len(w.Watched()))
	return nil
}

// Watched returns the watched directories.
func (w *ProjectsWatcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Close stops the watcher. Pending notifications are dropped.
func (w *ProjectsWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	fsw := w.watcher
	w.mu.Unlock()

	w.debouncer.Stop()
	if fsw != nil {
		fsw.Close()
	}
	w.wg.Wait()
	return nil
}

// addTree watches dir and every non-ignored directory below it. It returns
// the first session log found, which for a directory created after start
// may have been written before its watch existed.
func (w *ProjectsWatcher) addTree(dir string) (string, error) {
	var firstLog string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			if firstLog == "" && isSessionLog(path) {
				firstLog = path
			}
			return nil
		}
		if path != dir && w.ignore[d.Name()] {
			return filepath.SkipDir
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed || w.dirs[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("watcher: add %s: %v", path, err)
			return nil
		}
		w.dirs[path] = true
		return nil
	})
	return firstLog, err
}

func (w *ProjectsWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: %v", err)
		}
	}
}

func (w *ProjectsWatcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if w.ignored(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			firstLog, err := w.addTree(event.Name)
			if err != nil {
				log.Printf("watcher: add %s: %v", event.Name, err)
			}
			if firstLog != "" {
				w.trigger(ChangeAdd, firstLog)
				return
			}
			w.trigger(ChangeAddDir, event.Name)
			return
		}
		if isSessionLog(event.Name) {
			w.trigger(ChangeAdd, event.Name)
		}

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.mu.Lock()
		wasDir := w.dirs[event.Name]
		if wasDir {
			prefix := event.Name + string(filepath.Separator)
			for d := range w.dirs {
				if d == event.Name || strings.HasPrefix(d, prefix) {
					delete(w.dirs, d)
				}
			}
		}
		w.mu.Unlock()
		if wasDir {
			w.trigger(ChangeUnlinkDir, event.Name)
		} else if isSessionLog(event.Name) {
			w.trigger(ChangeUnlink, event.Name)
		}

	case event.Has(fsnotify.Write):
		if isSessionLog(event.Name) {
			w.trigger(ChangeModify, event.Name)
		}
	}
}

func (w *ProjectsWatcher) trigger(t ChangeType, path string) {
	w.debouncer.Coalesce(burstKey, Change{Type: t, Path: path}, func(c Change) {
		w.mu.Lock()
		closed := w.closed
		w.mu.Unlock()
		if closed || w.onChange == nil {
			return
		}
		w.onChange(c)
	})
}

// ignored reports whether any directory between the root and path is ignored.
func (w *ProjectsWatcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
		if w.ignore[part] {
			return true
		}
	}
	return w.ignore[filepath.Base(rel)]
}

func isSessionLog(path string) bool {
	return strings.HasSuffix(path, ".jsonl")
}
