// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/wingedpig/clauderelay/internal/claude"
	"github.com/wingedpig/clauderelay/internal/clientstore"
	"github.com/wingedpig/clauderelay/internal/config"
	"github.com/wingedpig/clauderelay/internal/identity"
	"github.com/wingedpig/clauderelay/internal/projects"
	"github.com/wingedpig/clauderelay/internal/reconciler"
	"github.com/wingedpig/clauderelay/internal/transcript"
	"github.com/wingedpig/clauderelay/pkg/client"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat <project>",
		Short: "Chat with Claude in a project through a running relay",
		Long: `Open an interactive chat in a project.

Without --session a new conversation is started. Lines typed are sent as
commands; these are handled locally:
  /abort           stop the running invocation
  /new             start a new conversation
  /sessions        list the project's conversations
  /restore <id>    restore a checkpoint (ids are shown next to your messages)
  /forget <id>     delete a checkpoint
  /resend          send the message left unsent
  /quit            leave

Project names start with '-'; separate them from flags with --:
  clauderelay chat --session 3f2a... -- -home-dev-demo`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts, args[0], sessionID)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session to resume")
	return cmd
}

func runChat(cmd *cobra.Command, opts *rootOptions, project, sessionID string) error {
	if !opts.debug {
		log.SetOutput(io.Discard)
	}

	configPath, err := resolveConfigPath(opts.configPath)
	if err != nil {
		return err
	}
	cfg, err := config.NewLoader().LoadOrDefault(cmd.Context(), configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	statePath := config.ExpandPath(cfg.Client.StatePath)
	if err := os.MkdirAll(filepath.Dir(statePath), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	store, err := clientstore.Open(statePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	api := opts.client()
	conn, err := api.DialChat(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	s := newChatSession(api, conn, store, project, chatOptions{
		MaxAge:         config.ParseDuration(cfg.Client.PlaceholderMaxAge, reconciler.DefaultMaxAge),
		PendingTimeout: config.ParseDuration(cfg.Client.PendingTimeout, reconciler.DefaultPendingTimeout),
		DedupSize:      cfg.Client.DedupSize,
		Tolerance:      config.ParseDuration(cfg.Client.CheckpointTolerance, 5*time.Second),
	}, cmd.OutOrStdout())

	if err := s.open(ctx, sessionID); err != nil {
		return err
	}
	return s.run(ctx, cmd.InOrStdin())
}

// chatConn is the part of *client.ChatConn a chat session uses.
type chatConn interface {
	SendCommand(command string, opts client.CommandOptions) error
	Abort(sessionID string) error
	ReadMessage() (*client.ServerMessage, error)
}

type chatOptions struct {
	MaxAge         time.Duration
	PendingTimeout time.Duration
	DedupSize      int
	Tolerance      time.Duration
}

// chatSession drives one terminal chat: it feeds the server's message
// stream to the reconciler and renders the transcript.
type chatSession struct {
	api       *client.Client
	conn      chatConn
	store     *clientstore.Store
	rec       *reconciler.Reconciler
	tr        *transcript.Transcript
	project   string
	tolerance time.Duration
	now       func() time.Time

	outMu sync.Mutex
	out   io.Writer
}

func newChatSession(api *client.Client, conn chatConn, store *clientstore.Store, project string, opts chatOptions, out io.Writer) *chatSession {
	s := &chatSession{
		api:       api,
		conn:      conn,
		store:     store,
		project:   project,
		tolerance: opts.Tolerance,
		tr:        transcript.New(),
		now:       time.Now,
		out:       out,
	}
	s.rec = reconciler.New(store, reconciler.Options{
		MaxAge:         opts.MaxAge,
		PendingTimeout: opts.PendingTimeout,
		DedupSize:      opts.DedupSize,
	})
	s.rec.OnSubstitution(s.onSubstitution)
	return s
}

// open installs the first snapshot and selects sessionID, the newest valid
// placeholder of the project, or a new placeholder.
func (s *chatSession) open(ctx context.Context, sessionID string) error {
	snapshot, err := s.fetchSnapshot(ctx)
	if err != nil {
		return err
	}
	s.rec.SetSnapshot(snapshot)
	if _, ok := projects.Find(snapshot, s.project); !ok {
		return fmt.Errorf("%w: %s", projects.ErrProjectNotFound, s.project)
	}
	if _, err := s.rec.CleanupOrphans(); err != nil {
		log.Printf("chat: cleanup: %v", err)
	}

	defer s.showDraft()

	if sessionID != "" {
		s.rec.Select(s.project, sessionID)
		return s.loadHistory(ctx, sessionID)
	}

	recs, err := s.rec.ValidPlaceholders(s.project)
	if err != nil {
		return err
	}
	if len(recs) > 0 {
		s.rec.Select(s.project, recs[0].ID)
		s.rec.Protect(recs[0].ID)
		s.tr.Load(recs[0].ID, nil)
		s.printf("%s\n", systemStyle.Render("Continuing new conversation "+recs[0].ID))
		return nil
	}
	return s.startNew()
}

func (s *chatSession) startNew() error {
	sess, err := s.rec.StartNewConversation(s.project)
	if err != nil {
		return err
	}
	s.tr.Load(sess.ID, nil)
	s.printf("%s\n", systemStyle.Render("New conversation in "+s.project))
	return nil
}

func (s *chatSession) fetchSnapshot(ctx context.Context) ([]projects.Project, error) {
	list, err := s.api.Projects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return toProjects(list)
}

// toProjects converts the client's wire type into the reconciler's.
func toProjects(list []client.Project) ([]projects.Project, error) {
	data, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	var out []projects.Project
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to convert projects: %w", err)
	}
	return out, nil
}

// loadHistory replaces the transcript with the session's log. The cached
// transcript is shown when the server cannot provide it.
func (s *chatSession) loadHistory(ctx context.Context, sessionID string) error {
	var entries []transcript.Entry
	t, err := s.api.Sessions.Messages(ctx, s.project, sessionID)
	if err == nil {
		entries, err = transcript.UnmarshalEntries(t.Entries)
	}
	if err != nil {
		cached, cacheErr := s.store.Transcript(s.project)
		if cacheErr != nil || len(cached) == 0 || transcript.MetaOf(cached[0]).SessionID != sessionID {
			return fmt.Errorf("failed to load session %s: %w", sessionID, err)
		}
		s.printf("%s\n", systemStyle.Render("Server unavailable, showing cached transcript"))
		entries = cached
	}

	if cps, err := s.store.Checkpoints(s.project); err == nil {
		transcript.Associate(entries, cps, s.tolerance)
	}
	s.tr.Load(sessionID, entries)
	for _, e := range s.tr.Entries() {
		s.render(e)
	}
	return nil
}

// send dispatches one user turn. A line that cannot be sent is kept as the
// project's draft.
func (s *chatSession) send(ctx context.Context, text string) error {
	if s.rec.Dispatched() != "" {
		s.keepDraft(text)
		return errors.New("an invocation is still running; wait or /abort, then /resend")
	}
	id, err := s.rec.SendMessage()
	if err != nil {
		return err
	}

	now := s.now()
	user := &transcript.User{
		Meta: transcript.Meta{Timestamp: now, SessionID: id, Pending: true},
		Text: text,
	}
	if cp := s.checkpoint(ctx, id, text, now); cp != nil {
		user.CheckpointID = cp.ID
	}
	s.tr.Append(user)

	err = s.conn.SendCommand(text, client.CommandOptions{
		SessionID:   id,
		Resume:      identity.IsReal(id),
		ProjectName: s.project,
	})
	if err != nil {
		s.keepDraft(text)
		return err
	}
	s.keepDraft("")
	return nil
}

func (s *chatSession) keepDraft(text string) {
	if err := s.store.SaveDraft(s.project, text); err != nil {
		log.Printf("chat: save draft: %v", err)
	}
}

// showDraft mentions a line left unsent by an earlier run.
func (s *chatSession) showDraft() {
	draft, err := s.store.Draft(s.project)
	if err != nil || draft == "" {
		return
	}
	s.printf("%s\n", systemStyle.Render("Unsent message: "+truncate(draft, 80)+" (/resend to send it)"))
}

// checkpoint records the working tree before a turn. Failures only cost
// the ability to restore and are not fatal.
func (s *chatSession) checkpoint(ctx context.Context, sessionID, text string, now time.Time) *transcript.Checkpoint {
	req := client.CheckpointRequest{Content: text, Timestamp: now}
	if identity.IsReal(sessionID) {
		req.SessionID = sessionID
	}
	created, err := s.api.Checkpoints.Create(ctx, s.project, req)
	if err != nil {
		log.Printf("chat: checkpoint: %v", err)
		return nil
	}
	cp := transcript.Checkpoint{
		ID:        created.ID,
		Project:   s.project,
		SessionID: created.SessionID,
		Content:   created.Content,
		Timestamp: created.Timestamp,
		Ref:       created.Ref,
		WorkDir:   created.WorkDir,
	}
	if err := s.store.SaveCheckpoint(cp); err != nil {
		log.Printf("chat: save checkpoint: %v", err)
	}
	return &cp
}

func (s *chatSession) onSubstitution(sub reconciler.Substitution) {
	s.tr.Rebind(sub.Placeholder, sub.SessionID)
	s.printf("%s\n", systemStyle.Render("Session "+sub.SessionID))
}

// handle applies one server message. It returns false for a message that
// was already applied.
func (s *chatSession) handle(msg *client.ServerMessage) bool {
	in := reconciler.InboundMessage{ID: msg.MessageID, Type: msg.Type, SessionID: msg.SessionID}
	if msg.Success != nil {
		in.Success = *msg.Success
	}
	if msg.Type == client.MsgProjectsUpdated {
		var body struct {
			Projects []projects.Project `json:"projects"`
		}
		if err := json.Unmarshal(msg.Raw, &body); err != nil {
			log.Printf("chat: projects_updated: %v", err)
			return false
		}
		in.Projects = body.Projects
	}

	// Terminal messages must be judged before Deliver ends the turn.
	current := s.isCurrent(msg.SessionID)
	if !s.rec.Deliver(in) {
		return false
	}
	if msg.Type == client.MsgSessionCreated {
		// A resumed session may continue under a new id.
		if sel := s.rec.Selection().SessionID; identity.IsReal(sel) && sel != s.tr.SessionID() {
			s.tr.Rebind(s.tr.SessionID(), sel)
		}
		current = s.isCurrent(msg.SessionID)
	}
	if !current {
		return true
	}

	ev, ok := toEvent(msg)
	if !ok {
		if msg.Type == client.MsgSessionAborted && in.Success {
			s.printf("%s\n", systemStyle.Render("Aborted"))
		}
		return true
	}
	entries := transcript.FromEvent(ev, s.now())
	s.tr.Append(entries...)
	for _, e := range entries {
		s.render(e)
	}

	if ev.Terminal() {
		s.tr.Settle()
		if err := s.store.SaveTranscript(s.project, s.tr.Entries()); err != nil {
			log.Printf("chat: cache transcript: %v", err)
		}
		s.printf("\n")
	}
	return true
}

// isCurrent reports whether messages for sessionID belong to the
// conversation in view, including every id of its in-flight turn.
func (s *chatSession) isCurrent(sessionID string) bool {
	if sessionID == "" {
		return true
	}
	sel := s.rec.Selection()
	return sel.Project == s.project && (sel.SessionID == sessionID || s.rec.IsInflight(sessionID))
}

// toEvent maps a server message back to the bridge event it was relayed
// from.
func toEvent(msg *client.ServerMessage) (claude.Event, bool) {
	ev := claude.Event{SessionID: msg.SessionID}
	switch msg.Type {
	case client.MsgClaudeResponse:
		stream, ok := claude.ParseLine(msg.Data)
		if !ok {
			return ev, false
		}
		ev.Kind = claude.EventOutput
		ev.Stream = &stream
		ev.Data = msg.Data
	case client.MsgClaudeOutput:
		ev.Kind = claude.EventOutput
		ev.Text = msg.Text()
	case client.MsgClaudeError:
		ev.Kind = claude.EventError
		ev.Text = msg.Error
	case client.MsgClaudeComplete:
		if msg.Aborted {
			ev.Kind = claude.EventAborted
			break
		}
		ev.Kind = claude.EventComplete
		if msg.ExitCode != nil {
			ev.ExitCode = *msg.ExitCode
		}
		if msg.Error != "" {
			ev.Err = errors.New(msg.Error)
		}
	default:
		return ev, false
	}
	return ev, true
}

// command handles a local slash command. It returns true when the chat
// should end.
func (s *chatSession) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/abort":
		id := s.rec.Dispatched()
		if id == "" {
			return false, errors.New("nothing is running")
		}
		return false, s.conn.Abort(id)
	case "/sessions":
		return false, s.listConversations()
	case "/resend":
		draft, err := s.store.Draft(s.project)
		if err != nil {
			return false, err
		}
		if draft == "" {
			return false, errors.New("no unsent message")
		}
		return false, s.send(ctx, draft)
	case "/forget":
		if len(fields) != 2 {
			return false, errors.New("usage: /forget <checkpoint-id>")
		}
		return false, s.forget(ctx, fields[1])
	case "/new":
		if s.rec.Dispatched() != "" {
			return false, errors.New("an invocation is still running")
		}
		return false, s.startNew()
	case "/restore":
		if len(fields) != 2 {
			return false, errors.New("usage: /restore <checkpoint-id>")
		}
		return false, s.restore(ctx, fields[1])
	}
	return false, fmt.Errorf("unknown command %s", fields[0])
}

// listConversations prints the project's sessions grouped by title and
// marks the one in view.
func (s *chatSession) listConversations() error {
	convs, err := s.rec.Conversations(s.project)
	if err != nil {
		return err
	}
	current := s.rec.Selection().SessionID
	for _, c := range convs {
		s.printf("%s\n", titleStyle.Render(truncate(c.Title, 60)))
		for _, sess := range c.Sessions {
			mark := " "
			if sess.ID == current {
				mark = "*"
			}
			line := fmt.Sprintf("  %s %s  %s", mark, idStyle.Render(sess.ID), dateStyle.Render(formatTime(sess.LastActivity)))
			if sess.IsPlaceholder {
				line += " " + systemStyle.Render("(new)")
			}
			s.printf("%s\n", line)
		}
	}
	return nil
}

// forget deletes a checkpoint on the server and from the local registry.
func (s *chatSession) forget(ctx context.Context, id string) error {
	if err := s.api.Checkpoints.Delete(ctx, s.project, id); err != nil {
		return err
	}
	if err := s.store.DeleteCheckpoint(s.project, id); err != nil {
		return fmt.Errorf("failed to forget checkpoint %s: %w", id, err)
	}
	s.printf("%s\n", systemStyle.Render("Deleted checkpoint "+id))
	return nil
}

func (s *chatSession) restore(ctx context.Context, id string) error {
	cp, err := s.api.Checkpoints.Restore(ctx, s.project, id)
	if err != nil {
		return err
	}
	s.printf("%s\n", systemStyle.Render("Restored checkpoint "+cp.ID))
	if sel := s.rec.Selection().SessionID; identity.IsReal(sel) {
		return s.loadHistory(ctx, sel)
	}
	return nil
}

// run reads input lines and server messages until the user quits, input
// ends or the connection drops.
func (s *chatSession) run(ctx context.Context, in io.Reader) error {
	msgs := make(chan *client.ServerMessage)
	readErr := make(chan error, 1)
	go func() {
		for {
			msg, err := s.conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	s.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return fmt.Errorf("connection closed: %w", err)
		case msg := <-msgs:
			if s.handle(msg) && msg.Type == client.MsgClaudeComplete && s.rec.Dispatched() == "" {
				s.prompt()
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				s.prompt()
				continue
			}
			if strings.HasPrefix(line, "/") {
				quit, err := s.command(ctx, line)
				if quit {
					return nil
				}
				if err != nil {
					s.printf("%s\n", errorStyle.Render(err.Error()))
				}
				s.prompt()
				continue
			}
			if err := s.send(ctx, line); err != nil {
				s.printf("%s\n", errorStyle.Render(err.Error()))
				s.prompt()
			}
		}
	}
}

func (s *chatSession) prompt() {
	s.printf("%s ", userStyle.Render(">"))
}

func (s *chatSession) printf(format string, args ...interface{}) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *chatSession) render(e transcript.Entry) {
	switch v := e.(type) {
	case *transcript.User:
		line := userStyle.Render("you: ") + v.Text
		if v.CheckpointID != "" {
			line += " " + idStyle.Render("["+v.CheckpointID+"]")
		}
		s.printf("%s\n", line)
	case *transcript.AssistantText:
		s.printf("%s\n", assistantStyle.Render(v.Text))
	case *transcript.ToolUse:
		s.printf("%s\n", toolStyle.Render("⚙ "+v.Name+" "+truncate(string(v.Input), 80)))
		if v.Result != nil {
			s.render(v.Result)
		}
	case *transcript.ToolResult:
		style := systemStyle
		if v.IsError {
			style = errorStyle
		}
		s.printf("%s\n", style.Render("  ↳ "+truncate(strings.TrimSpace(v.Content), 200)))
	case *transcript.InteractivePrompt:
		s.printf("%s\n", toolStyle.Render("? "+v.Prompt))
		if v.Answer != "" {
			s.printf("%s\n", systemStyle.Render("  ↳ "+v.Answer))
		}
	case *transcript.System:
		s.printf("%s\n", systemStyle.Render(v.Text))
	case *transcript.Error:
		s.printf("%s\n", errorStyle.Render(v.Message))
	}
}
