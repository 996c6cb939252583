// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sessionlog

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// EncodeProjectPath converts a working directory into the project directory
// name used by the CLI: path separators and dots become dashes.
//
//	/Users/alice/src/myapp    -> -Users-alice-src-myapp
//	/Users/alice/src/groups.io -> -Users-alice-src-groups-io
func EncodeProjectPath(path string) string {
	return strings.NewReplacer("/", "-", `\`, "-", ".", "-", ":", "-").Replace(path)
}

// DecodeProjectName reconstructs a filesystem path from an encoded project
// name. Dashes are ambiguous, so runs of segments are matched against
// directories that exist on disk, preferring the longest run. Segments that
// match nothing are taken as single path components.
func DecodeProjectName(name string) string {
	raw := strings.Split(strings.TrimPrefix(name, "-"), "-")

	// An empty segment comes from "/." and starts a dot-directory.
	parts := make([]string, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] == "" && i+1 < len(raw) {
			raw[i+1] = "." + raw[i+1]
			continue
		}
		parts = append(parts, raw[i])
	}

	path := string(filepath.Separator)
	for i := 0; i < len(parts); {
		next := i + 1
		comp := parts[i]
		for j := len(parts); j > i+1; j-- {
			if c, ok := existingJoin(path, parts[i:j]); ok {
				comp, next = c, j
				break
			}
		}
		path = filepath.Join(path, comp)
		i = next
	}
	return path
}

func existingJoin(base string, segs []string) (string, bool) {
	for _, sep := range []string{"-", ".", "_"} {
		c := strings.Join(segs, sep)
		if fi, err := os.Stat(filepath.Join(base, c)); err == nil && fi.IsDir() {
			return c, true
		}
	}
	return "", false
}

// ResolveProjectPath returns the working directory a project belongs to:
// the configured override, else the cwd recorded in its logs, else the
// decoded directory name. Results are cached until InvalidateCache.
func (r *Reader) ResolveProjectPath(project string) (string, error) {
	dir, err := r.ProjectDir(project)
	if err != nil {
		return "", err
	}

	r.mu.RLock()
	cached, ok := r.paths[project]
	overrides := r.overrides
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var path string
	if overrides != nil {
		if p, ok := overrides.PathOverride(project); ok && p != "" {
			path = p
		}
	}
	if path == "" {
		path = r.voteCWD(dir)
	}
	if path == "" {
		path = DecodeProjectName(project)
	}

	r.mu.Lock()
	r.paths[project] = path
	r.mu.Unlock()
	return path, nil
}

// InvalidateCache forgets every resolved project path.
func (r *Reader) InvalidateCache() {
	r.mu.Lock()
	r.paths = make(map[string]string)
	r.mu.Unlock()
}

// voteCWD picks the project's working directory from the cwd fields of its
// entries. The most recently seen cwd wins if it accounts for at least a
// quarter of all occurrences, otherwise the most frequent one does.
func (r *Reader) voteCWD(dir string) string {
	files, err := logFiles(dir)
	if err != nil {
		log.Printf("sessionlog: resolve %s: %v", dir, err)
		return ""
	}

	counts := make(map[string]int)
	total := 0
	var latest string
	var latestTime string
	for _, f := range files {
		_ = scanLines(f.path, func(n int, line []byte) bool {
			res := gjson.GetManyBytes(line, "cwd", "timestamp")
			cwd := res[0].Str
			if cwd == "" {
				return true
			}
			counts[cwd]++
			total++
			// RFC 3339 timestamps in UTC compare correctly as strings.
			if ts := res[1].Str; latest == "" || ts > latestTime {
				latest, latestTime = cwd, ts
			}
			return true
		})
	}
	if total == 0 {
		return ""
	}
	if float64(counts[latest])/float64(total) >= 0.25 {
		return latest
	}

	best, bestN := "", 0
	for cwd, n := range counts {
		if n > bestN || (n == bestN && cwd < best) {
			best, bestN = cwd, n
		}
	}
	return best
}
