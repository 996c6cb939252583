// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sessionlog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
)

var errMalformed = errors.New("malformed json")

// DeleteSession removes every entry of a session from the project's logs.
// Files left empty are removed.
func (r *Reader) DeleteSession(project, sessionID string) error {
	return r.filterSession(project, sessionID, func(line []byte) bool { return false })
}

// TruncateAfter drops a session's entries timestamped after cutoff, leaving
// the session ending at the entry the cutoff names. Entries of other
// sessions and entries without a timestamp are kept.
func (r *Reader) TruncateAfter(project, sessionID string, cutoff time.Time) error {
	return r.filterSession(project, sessionID, func(line []byte) bool {
		ts := parseTime(gjson.GetBytes(line, "timestamp").Str)
		return ts.IsZero() || !ts.After(cutoff)
	})
}

// DeleteProjectLogs removes a project's log directory.
func (r *Reader) DeleteProjectLogs(project string) error {
	dir, err := r.ProjectDir(project)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove project logs: %w", err)
	}
	r.mu.Lock()
	delete(r.paths, project)
	r.mu.Unlock()
	return nil
}

// filterSession rewrites every file holding entries of sessionID, keeping
// the session's lines for which keep returns true.
//
// The CLI may append to these files at any time, so files are never edited
// in place: each is read whole, filtered, written to a temp file and renamed
// over the original.
func (r *Reader) filterSession(project, sessionID string, keep func(line []byte) bool) error {
	dir, err := r.ProjectDir(project)
	if err != nil {
		return err
	}
	files, err := logFiles(dir)
	if err != nil {
		return err
	}

	found := false
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return fmt.Errorf("read log: %w", err)
		}

		var out bytes.Buffer
		matched, kept := false, 0
		for _, line := range bytes.Split(data, []byte("\n")) {
			trimmed := bytes.TrimSpace(line)
			if len(trimmed) == 0 {
				continue
			}
			if gjson.GetBytes(trimmed, "sessionId").Str == sessionID {
				matched = true
				if !keep(trimmed) {
					continue
				}
			}
			out.Write(trimmed)
			out.WriteByte('\n')
			kept++
		}
		if !matched {
			continue
		}
		found = true

		if kept == 0 {
			if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove log: %w", err)
			}
			continue
		}
		if err := writeAtomic(f.path, out.Bytes()); err != nil {
			return err
		}
	}

	if !found {
		return ErrSessionNotFound
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp log: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp log: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename log: %w", err)
	}
	return nil
}
