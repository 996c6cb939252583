// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package sessionlog

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"github.com/wingedpig/clauderelay/internal/identity"
)

// PathOverrides supplies explicitly configured project paths.
type PathOverrides interface {
	PathOverride(project string) (string, bool)
}

// Reader reads session logs under a root directory.
type Reader struct {
	root string

	mu        sync.RWMutex
	paths     map[string]string // resolved project paths
	overrides PathOverrides

	parseErrors atomic.Int64
}

// NewReader creates a reader over root, usually ~/.claude/projects.
func NewReader(root string) *Reader {
	return &Reader{
		root:  root,
		paths: make(map[string]string),
	}
}

// Root returns the log root directory.
func (r *Reader) Root() string { return r.root }

// SetOverrides installs the explicit path configuration.
func (r *Reader) SetOverrides(o PathOverrides) {
	r.mu.Lock()
	r.overrides = o
	r.paths = make(map[string]string)
	r.mu.Unlock()
}

// ParseErrors returns the number of malformed lines skipped so far.
func (r *Reader) ParseErrors() int64 { return r.parseErrors.Load() }

// ProjectDir returns the log directory of a project.
func (r *Reader) ProjectDir(project string) (string, error) {
	if !validProjectName(project) {
		return "", ErrInvalidProject
	}
	return filepath.Join(r.root, project), nil
}

// ProjectDirs lists the project directory names under the root.
func (r *Reader) ProjectDirs() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// sessionAgg accumulates one session's metadata while scanning.
type sessionAgg struct {
	info         SessionInfo
	firstUser    string
	explicitSumm string
}

// ListSessions returns one page of the project's sessions, most recent
// activity first.
//
// Files are read newest first and the scan stops as soon as more than
// offset+limit sessions are known, so Total counts only what was scanned
// when HasMore is true. A session seen in more than one file keeps the
// record from the first file that contained it.
func (r *Reader) ListSessions(project string, limit, offset int) (Page, error) {
	page := Page{Sessions: []SessionInfo{}, Offset: offset, Limit: limit}

	dir, err := r.ProjectDir(project)
	if err != nil {
		return page, err
	}
	files, err := logFiles(dir)
	if err != nil {
		return page, err
	}

	all := make(map[string]*sessionAgg)
	var order []string
	uuidOwner := make(map[string]string) // entry uuid -> session id
	leafSummaries := make(map[string]string)

	want := offset + limit
	scanned := 0
	for _, f := range files {
		local := r.scanSessionFile(f.path, uuidOwner, leafSummaries)
		for _, agg := range local.order {
			if _, seen := all[agg.info.ID]; seen {
				continue
			}
			all[agg.info.ID] = agg
			order = append(order, agg.info.ID)
		}
		scanned++
		if limit > 0 && len(order) > want {
			break
		}
	}

	for leaf, summary := range leafSummaries {
		if id, ok := uuidOwner[leaf]; ok {
			if agg, ok := all[id]; ok && agg.explicitSumm == "" {
				agg.explicitSumm = summary
			}
		}
	}

	sessions := make([]SessionInfo, 0, len(order))
	for _, id := range order {
		agg := all[id]
		switch {
		case agg.explicitSumm != "":
			agg.info.Summary = agg.explicitSumm
		case agg.firstUser != "":
			agg.info.Summary = titleFrom(agg.firstUser)
		default:
			agg.info.Summary = DefaultSummary
		}
		sessions = append(sessions, agg.info)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastActivity.After(sessions[j].LastActivity)
	})

	page.Total = len(sessions)
	if offset > len(sessions) {
		offset = len(sessions)
	}
	end := len(sessions)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page.Sessions = sessions[offset:end]
	page.HasMore = end < len(sessions) || scanned < len(files)
	return page, nil
}

type fileSessions struct {
	order []*sessionAgg
}

// scanSessionFile aggregates the sessions of a single file using cheap field
// lookups rather than full decoding.
func (r *Reader) scanSessionFile(path string, uuidOwner, leafSummaries map[string]string) fileSessions {
	byID := make(map[string]*sessionAgg)
	var out fileSessions

	err := scanLines(path, func(n int, line []byte) bool {
		if !gjson.ValidBytes(line) {
			r.skip(&ParseError{File: path, Line: n, Err: errMalformed})
			return true
		}
		res := gjson.ParseBytes(line)
		typ := res.Get("type").Str
		sid := res.Get("sessionId").Str

		if typ == "summary" {
			summary := res.Get("summary").Str
			if leaf := res.Get("leafUuid").Str; leaf != "" && summary != "" {
				leafSummaries[leaf] = summary
			}
			if sid != "" && summary != "" {
				agg := ensureAgg(byID, &out, sid)
				agg.explicitSumm = summary
			}
			return true
		}
		if sid == "" {
			return true
		}

		agg := ensureAgg(byID, &out, sid)
		if u := res.Get("uuid").Str; u != "" {
			uuidOwner[u] = sid
		}
		if cwd := res.Get("cwd").Str; cwd != "" {
			agg.info.CWD = cwd
		}
		if ts := parseTime(res.Get("timestamp").Str); !ts.IsZero() {
			if agg.info.CreatedAt.IsZero() || ts.Before(agg.info.CreatedAt) {
				agg.info.CreatedAt = ts
			}
			if ts.After(agg.info.LastActivity) {
				agg.info.LastActivity = ts
				agg.info.UpdatedAt = ts
			}
		}
		if typ == "user" || typ == "assistant" {
			agg.info.MessageCount++
		}
		if typ == "user" && agg.firstUser == "" && !res.Get("isMeta").Bool() {
			if text := userText(res.Get("message.content")); text != "" && !IsCommandMarker(text) {
				agg.firstUser = text
			}
		}
		return true
	})
	if err != nil {
		log.Printf("sessionlog: scan %s: %v", path, err)
	}
	return out
}

func ensureAgg(byID map[string]*sessionAgg, out *fileSessions, sid string) *sessionAgg {
	agg, ok := byID[sid]
	if !ok {
		agg = &sessionAgg{info: SessionInfo{ID: sid}}
		byID[sid] = agg
		out.order = append(out.order, agg)
	}
	return agg
}

// userText extracts the first text of a user message content value.
func userText(content gjson.Result) string {
	if content.Type == gjson.String {
		return strings.TrimSpace(content.Str)
	}
	var text string
	content.ForEach(func(_, block gjson.Result) bool {
		if block.Get("type").Str == "text" {
			text = strings.TrimSpace(block.Get("text").Str)
			return false
		}
		return true
	})
	return text
}

func titleFrom(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	const max = 50
	if r := []rune(text); len(r) > max {
		return string(r[:max]) + "..."
	}
	return text
}

// ListMessages returns every entry of a session across the project's files,
// oldest first. Transient ids have no log entries and yield an empty list.
func (r *Reader) ListMessages(project, sessionID string) ([]Message, error) {
	msgs := []Message{}
	if identity.IsTransient(sessionID) {
		return msgs, nil
	}
	dir, err := r.ProjectDir(project)
	if err != nil {
		return msgs, err
	}
	files, err := logFiles(dir)
	if err != nil {
		return msgs, err
	}

	for _, f := range files {
		err := scanLines(f.path, func(n int, line []byte) bool {
			if gjson.GetBytes(line, "sessionId").Str != sessionID {
				return true
			}
			var m Message
			if err := json.Unmarshal(line, &m); err != nil {
				r.skip(&ParseError{File: f.path, Line: n, Err: err})
				return true
			}
			msgs = append(msgs, m)
			return true
		})
		if err != nil {
			log.Printf("sessionlog: scan %s: %v", f.path, err)
		}
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Time().Before(msgs[j].Time())
	})
	return msgs, nil
}

// FindSessionByCommand looks for the session whose user entry matches
// command in log files of workDir modified at or after since. It is the
// fallback used when a process exits without reporting its session id.
func (r *Reader) FindSessionByCommand(workDir, command string, since time.Time) (string, bool) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", false
	}
	files, err := logFiles(filepath.Join(r.root, EncodeProjectPath(workDir)))
	if err != nil {
		return "", false
	}

	for _, f := range files {
		if f.modTime.Before(since) {
			break
		}
		var found string
		_ = scanLines(f.path, func(n int, line []byte) bool {
			res := gjson.ParseBytes(line)
			if res.Get("type").Str != "user" {
				return true
			}
			if ts := parseTime(res.Get("timestamp").Str); !ts.IsZero() && ts.Before(since) {
				return true
			}
			if strings.Contains(userText(res.Get("message.content")), command) {
				found = res.Get("sessionId").Str
				return found == ""
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func (r *Reader) skip(perr *ParseError) {
	r.parseErrors.Add(1)
	log.Printf("sessionlog: skipping malformed line %v", perr)
}

var commandMarkers = []string{
	"<command-name>",
	"<command-message>",
	"<command-args>",
	"<local-command-stdout>",
	"<system-reminder>",
	"Caveat:",
}

// IsCommandMarker reports whether text is an internal slash-command or
// system marker rather than something the user typed.
func IsCommandMarker(text string) bool {
	text = strings.TrimSpace(text)
	for _, m := range commandMarkers {
		if strings.HasPrefix(text, m) {
			return true
		}
	}
	return false
}

func validProjectName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
