// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package reconciler keeps a client's view of projects and sessions
// consistent while sessions are created optimistically.
//
// A new conversation starts as a placeholder session with a client-minted
// id. When the CLI reports the id it assigned, the placeholder is replaced
// in place. While a conversation is active its ids are protected: background
// snapshots that would change the selected session are dropped until the
// conversation ends.
package reconciler

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/wingedpig/clauderelay/internal/identity"
	"github.com/wingedpig/clauderelay/internal/projects"
	"github.com/wingedpig/clauderelay/internal/sessionlog"
)

// Defaults for Options.
const (
	DefaultMaxAge         = 24 * time.Hour
	DefaultPendingTimeout = 5 * time.Minute
	DefaultDedupSize      = 500
)

// Options configures a Reconciler.
type Options struct {
	MaxAge         time.Duration // placeholder records older than this are pruned
	PendingTimeout time.Duration // pending conversions older than this are pruned
	DedupSize      int
	Now            func() time.Time
}

// Reconciler is the per-client state machine. All methods are safe for
// concurrent use, but transitions are expected to arrive as one ordered
// stream.
type Reconciler struct {
	store          Store
	now            func() time.Time
	maxAge         time.Duration
	pendingTimeout time.Duration
	dedup          *DedupCache

	mu          sync.Mutex
	snapshot    []projects.Project
	selection   Selection
	protected   map[string]bool
	inflight    []string          // ids protected for the dispatched turn
	dispatched  string            // id the current turn was dispatched with
	substituted map[string]string // placeholder -> assigned id
	observers   []func(Substitution)
}

// New creates a reconciler backed by store.
func New(store Store, opts Options) *Reconciler {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = DefaultPendingTimeout
	}
	if opts.DedupSize <= 0 {
		opts.DedupSize = DefaultDedupSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{
		store:          store,
		now:            opts.Now,
		maxAge:         opts.MaxAge,
		pendingTimeout: opts.PendingTimeout,
		dedup:          NewDedupCache(opts.DedupSize),
		protected:      make(map[string]bool),
		substituted:    make(map[string]string),
	}
}

// OnSubstitution registers fn to be called once per placeholder replacement.
func (r *Reconciler) OnSubstitution(fn func(Substitution)) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// SetSnapshot installs a snapshot unconditionally, as on first load.
// Placeholder sessions that are still valid are kept at the head of their
// project's session list.
func (r *Reconciler) SetSnapshot(snapshot []projects.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.installLocked(snapshot)
}

// Snapshot returns a copy of the current snapshot.
func (r *Reconciler) Snapshot() []projects.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	return projects.Clone(r.snapshot)
}

// Conversations groups the sessions project currently lists by title.
// Substituted placeholders appear under their assigned id.
func (r *Reconciler) Conversations(project string) ([]projects.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := projects.Find(r.snapshot, project)
	if !ok {
		return nil, fmt.Errorf("%w: %s", projects.ErrProjectNotFound, project)
	}
	return projects.GroupConversations(p.Sessions), nil
}

// Selection returns the project and session in view.
func (r *Reconciler) Selection() Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection
}

// Select changes the view. Opening a placeholder protects it.
func (r *Reconciler) Select(project, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection = Selection{Project: project, SessionID: sessionID}
	if identity.IsPlaceholder(sessionID) {
		r.protected[sessionID] = true
	}
}

// State reports the state of the selected slot.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.selection.SessionID
	switch {
	case id == "":
		return StateNone
	case identity.IsPlaceholder(id):
		if rec, ok, err := r.store.Placeholder(id); err == nil && ok && rec.PendingConversion {
			return StatePendingConversion
		}
		return StatePlaceholder
	case r.protected[id]:
		return StateProtectedReal
	}
	return StateReal
}

// StartNewConversation mints a placeholder session in project, records it,
// puts it first in the project's session list, selects it and protects it.
func (r *Reconciler) StartNewConversation(project string) (projects.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := projects.Find(r.snapshot, project)
	if !ok {
		return projects.Session{}, fmt.Errorf("%w: %s", projects.ErrProjectNotFound, project)
	}

	now := r.now()
	rec := PlaceholderRecord{ID: identity.NewPlaceholder(now), Project: project, CreatedAt: now}
	if err := r.store.SavePlaceholder(rec); err != nil {
		return projects.Session{}, fmt.Errorf("save placeholder: %w", err)
	}

	s := placeholderSession(rec)
	p.Sessions = append([]projects.Session{s}, p.Sessions...)
	r.selection = Selection{Project: project, SessionID: rec.ID}
	r.protected[rec.ID] = true
	log.Printf("reconciler: started placeholder %s in %s", rec.ID, project)
	return s, nil
}

func placeholderSession(rec PlaceholderRecord) projects.Session {
	return projects.Session{
		SessionInfo: sessionlog.SessionInfo{
			ID:           rec.ID,
			Summary:      sessionlog.DefaultSummary,
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.CreatedAt,
			LastActivity: rec.CreatedAt,
		},
		ProjectName:   rec.Project,
		IsPlaceholder: true,
	}
}

// SendMessage returns the id a new turn is dispatched with and protects it:
// the selected session, or a new-session marker when the project has none
// selected. A placeholder's record is marked pending conversion.
func (r *Reconciler) SendMessage() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.selection.Project == "" {
		return "", ErrNoActiveSession
	}
	id := r.selection.SessionID
	if id == "" {
		id = identity.NewSessionMarker(r.now())
	}

	if identity.IsPlaceholder(id) {
		rec, ok, err := r.store.Placeholder(id)
		if err != nil {
			return "", fmt.Errorf("load placeholder: %w", err)
		}
		if !ok {
			rec = PlaceholderRecord{ID: id, Project: r.selection.Project, CreatedAt: r.now()}
		}
		rec.PendingConversion = true
		rec.PendingSince = r.now()
		if err := r.store.SavePlaceholder(rec); err != nil {
			return "", fmt.Errorf("save placeholder: %w", err)
		}
	}

	r.inflight = []string{id}
	r.protected[id] = true
	if title := r.selectedTitleLocked(); title != "" {
		marker := identity.ConversationMarker(title)
		r.inflight = append(r.inflight, marker)
		r.protected[marker] = true
	}
	r.dispatched = id
	return id, nil
}

// selectedTitleLocked returns the groupable title of the selected session.
func (r *Reconciler) selectedTitleLocked() string {
	s, ok := r.findLocked(r.selection.Project, r.selection.SessionID)
	if !ok || s.IsPlaceholder || s.Summary == "" || s.Summary == sessionlog.DefaultSummary {
		return ""
	}
	return s.Summary
}

func (r *Reconciler) findLocked(project, id string) (*projects.Session, bool) {
	if id == "" {
		return nil, false
	}
	p, ok := projects.Find(r.snapshot, project)
	if !ok {
		return nil, false
	}
	return p.FindSession(id)
}

// OnIdentityAssigned records the id the CLI assigned to the dispatched turn.
// When the turn was dispatched with a placeholder, the placeholder is
// replaced by a real session in one step: its record is deleted, protection
// moves to the assigned id and the session keeps its list position. It
// reports whether a substitution happened; a repeated call for the same
// pair is a no-op.
func (r *Reconciler) OnIdentityAssigned(sessionID string) (bool, error) {
	r.mu.Lock()

	if !identity.IsReal(sessionID) {
		r.mu.Unlock()
		return false, fmt.Errorf("not an assigned session id: %q", sessionID)
	}
	from := r.dispatched
	if from == "" {
		r.mu.Unlock()
		for _, real := range r.substitutedIDs() {
			if real == sessionID {
				return false, nil
			}
		}
		return false, ErrNoActiveSession
	}
	if r.substituted[from] == sessionID || from == sessionID {
		r.protected[sessionID] = true
		r.mu.Unlock()
		return false, nil
	}

	if !identity.IsPlaceholder(from) {
		// New-session marker, or a resumed session the CLI continued under
		// a new id. The assigned id becomes the in-flight session; a
		// resumed id stays protected until the turn ends.
		if identity.IsNewSessionMarker(from) {
			delete(r.protected, from)
			if r.selection.SessionID == "" {
				r.selection.SessionID = sessionID
			}
		} else if r.selection.SessionID == from {
			r.selection.SessionID = sessionID
			log.Printf("reconciler: resumed session %s continues as %s", from, sessionID)
		}
		r.dispatched = sessionID
		r.protected[sessionID] = true
		r.inflight = append(r.inflight, sessionID)
		r.mu.Unlock()
		return false, nil
	}

	if err := r.store.DeletePlaceholder(from); err != nil {
		r.mu.Unlock()
		return false, fmt.Errorf("delete placeholder: %w", err)
	}
	delete(r.protected, from)
	r.protected[sessionID] = true
	for i, id := range r.inflight {
		if id == from {
			r.inflight[i] = sessionID
		}
	}
	r.dispatched = sessionID
	r.substituted[from] = sessionID

	sub := Substitution{Placeholder: from, SessionID: sessionID}
	for pi := range r.snapshot {
		p := &r.snapshot[pi]
		if s, ok := replaceSession(p, from, sessionID); ok {
			sub.Project = p.Name
			sub.Session = s
		}
	}
	if r.selection.SessionID == from {
		r.selection.SessionID = sessionID
		if sub.Project == "" {
			sub.Project = r.selection.Project
		}
	}
	observers := append([]func(Substitution){}, r.observers...)
	r.mu.Unlock()

	log.Printf("reconciler: placeholder %s is now %s", from, sessionID)
	for _, fn := range observers {
		fn(sub)
	}
	return true, nil
}

// replaceSession swaps the placeholder for the assigned id at the same list
// position. When the project already lists the assigned id, the placeholder
// is dropped instead so only one representation remains.
func replaceSession(p *projects.Project, from, to string) (projects.Session, bool) {
	idx := -1
	existing := -1
	for i, s := range p.Sessions {
		switch s.ID {
		case from:
			idx = i
		case to:
			existing = i
		}
	}
	if idx < 0 {
		return projects.Session{}, false
	}
	if existing >= 0 {
		s := p.Sessions[existing]
		p.Sessions = append(p.Sessions[:idx], p.Sessions[idx+1:]...)
		return s, true
	}
	s := p.Sessions[idx]
	s.ID = to
	s.IsPlaceholder = false
	p.Sessions[idx] = s
	return s, true
}

// OnConversationTerminal ends the in-flight turn and lifts its protection.
func (r *Reconciler) OnConversationTerminal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.inflight {
		delete(r.protected, id)
	}
	r.inflight = nil
	r.dispatched = ""
}

// Dispatched returns the id of the in-flight turn, or "".
func (r *Reconciler) Dispatched() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dispatched
}

// EvaluateBackgroundSnapshot decides whether snapshot may replace the
// current one without disturbing the protected selection.
func (r *Reconciler) EvaluateBackgroundSnapshot(snapshot []projects.Project) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evaluateLocked(snapshot)
}

func (r *Reconciler) evaluateLocked(snapshot []projects.Project) Decision {
	sel := r.selection
	if sel.SessionID == "" || !r.selectionProtectedLocked() {
		return DecisionApply
	}
	if identity.IsPlaceholder(sel.SessionID) {
		return DecisionApply
	}

	old, ok := r.findLocked(sel.Project, sel.SessionID)
	if !ok {
		return DecisionApplyAdditive
	}
	np, ok := projects.Find(snapshot, sel.Project)
	if !ok {
		return DecisionSuppress
	}
	ns, ok := np.FindSession(sel.SessionID)
	if !ok || !old.SameListing(*ns) {
		return DecisionSuppress
	}
	return DecisionApplyAdditive
}

func (r *Reconciler) selectionProtectedLocked() bool {
	if r.protected[r.selection.SessionID] {
		return true
	}
	if title := r.selectedTitleLocked(); title != "" {
		return r.protected[identity.ConversationMarker(title)]
	}
	return false
}

// ApplyBackgroundSnapshot evaluates snapshot and installs it unless it is
// suppressed. A suppressed snapshot is dropped; the next one is evaluated
// afresh.
func (r *Reconciler) ApplyBackgroundSnapshot(snapshot []projects.Project) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.evaluateLocked(snapshot)
	if d != DecisionSuppress {
		r.installLocked(snapshot)
	}
	return d
}

func (r *Reconciler) installLocked(snapshot []projects.Project) {
	snap := projects.Clone(snapshot)

	keep := make(map[string]PlaceholderRecord)
	if recs, err := r.store.Placeholders(); err != nil {
		log.Printf("reconciler: load placeholders: %v", err)
	} else {
		for _, rec := range recs {
			if !rec.PendingConversion || rec.ID == r.selection.SessionID || rec.ID == r.dispatched {
				keep[rec.ID] = rec
			}
		}
	}
	if id := r.selection.SessionID; identity.IsPlaceholder(id) {
		if _, ok := keep[id]; !ok {
			if s, ok := r.findLocked(r.selection.Project, id); ok {
				keep[id] = PlaceholderRecord{ID: id, Project: r.selection.Project, CreatedAt: s.CreatedAt}
			}
		}
	}

	recs := make([]PlaceholderRecord, 0, len(keep))
	for _, rec := range keep {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })
	for _, rec := range recs {
		p, ok := projects.Find(snap, rec.Project)
		if !ok {
			continue
		}
		if _, exists := p.FindSession(rec.ID); exists {
			continue
		}
		p.Sessions = append([]projects.Session{placeholderSession(rec)}, p.Sessions...)
	}
	r.snapshot = snap
}

// CleanupOrphans prunes placeholder records that are older than the age
// ceiling, whose project is gone from the snapshot, or that have been
// pending conversion for longer than the pending timeout. It returns the
// pruned ids.
func (r *Reconciler) CleanupOrphans() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.store.Placeholders()
	if err != nil {
		return nil, fmt.Errorf("load placeholders: %w", err)
	}
	now := r.now()
	var pruned []string
	for _, rec := range recs {
		reason := ""
		switch {
		case now.Sub(rec.CreatedAt) > r.maxAge:
			reason = "expired"
		case r.snapshot != nil && !hasProject(r.snapshot, rec.Project):
			reason = "project gone"
		case rec.PendingConversion && now.Sub(rec.PendingSince) > r.pendingTimeout:
			reason = ErrIdentityUnresolved.Error()
		}
		if reason == "" {
			continue
		}
		if err := r.store.DeletePlaceholder(rec.ID); err != nil {
			return pruned, fmt.Errorf("delete placeholder %s: %w", rec.ID, err)
		}
		log.Printf("reconciler: pruned placeholder %s (%s)", rec.ID, reason)
		r.dropPlaceholderLocked(rec.ID)
		pruned = append(pruned, rec.ID)
	}
	return pruned, nil
}

func hasProject(snapshot []projects.Project, name string) bool {
	_, ok := projects.Find(snapshot, name)
	return ok
}

func (r *Reconciler) dropPlaceholderLocked(id string) {
	delete(r.protected, id)
	for pi := range r.snapshot {
		ss := r.snapshot[pi].Sessions
		for i := range ss {
			if ss[i].ID == id {
				r.snapshot[pi].Sessions = append(ss[:i], ss[i+1:]...)
				break
			}
		}
	}
	if r.selection.SessionID == id {
		r.selection.SessionID = ""
	}
	if r.dispatched == id {
		r.dispatched = ""
		r.inflight = nil
	}
}

// ValidPlaceholders returns the records of project that are not pending
// conversion, newest first. They are the placeholders to rebuild after a
// restart.
func (r *Reconciler) ValidPlaceholders(project string) ([]PlaceholderRecord, error) {
	recs, err := r.store.Placeholders()
	if err != nil {
		return nil, fmt.Errorf("load placeholders: %w", err)
	}
	var out []PlaceholderRecord
	for _, rec := range recs {
		if rec.Project == project && !rec.PendingConversion {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Protect adds id to the protection set.
func (r *Reconciler) Protect(id string) {
	r.mu.Lock()
	r.protected[id] = true
	r.mu.Unlock()
}

// Unprotect removes id from the protection set.
func (r *Reconciler) Unprotect(id string) {
	r.mu.Lock()
	delete(r.protected, id)
	r.mu.Unlock()
}

// IsProtected reports whether id is in the protection set.
func (r *Reconciler) IsProtected(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.protected[id]
}

// Protected lists the protection set, sorted.
func (r *Reconciler) Protected() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.protected))
	for id := range r.protected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Reconciler) substitutedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.substituted))
	for _, id := range r.substituted {
		out = append(out, id)
	}
	return out
}
