// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package claude runs the claude CLI and translates its output into events.
package claude

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	ps "github.com/mitchellh/go-ps"

	"github.com/wingedpig/clauderelay/internal/identity"
)

// ErrBridgeClosed is returned by Run after Shutdown.
var ErrBridgeClosed = errors.New("bridge is shut down")

const killGrace = 3 * time.Second

// SessionFinder recovers the id of a session the CLI did not report, from
// its log files.
type SessionFinder interface {
	FindSessionByCommand(workDir, command string, since time.Time) (string, bool)
}

// Config configures a Bridge.
type Config struct {
	Executable  string
	SearchPaths []string

	// Defaults applied when an invocation does not set them.
	Model       string
	Permissions Permissions

	StdinGrace        time.Duration // delay before stdin is closed
	PostExitScanDelay time.Duration // delay before the log scan fallback
	RecoveryWindow    time.Duration // clock tolerance for the log scan fallback
	Finder            SessionFinder

	Debug bool // log every stdout line
}

// Bridge spawns CLI invocations and tracks the running ones so they can be
// aborted by session id.
type Bridge struct {
	cfg Config

	mu      sync.Mutex
	running map[string]*invocation
	closed  bool
	wg      sync.WaitGroup
}

type invocation struct {
	cmd     *exec.Cmd
	aborted atomic.Bool
	done    chan struct{}

	mu      sync.Mutex
	current string
}

func (inv *invocation) sessionID() string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.current
}

func (inv *invocation) setSessionID(id string) {
	inv.mu.Lock()
	inv.current = id
	inv.mu.Unlock()
}

// NewBridge creates a bridge.
func NewBridge(cfg Config) *Bridge {
	if cfg.StdinGrace <= 0 {
		cfg.StdinGrace = 500 * time.Millisecond
	}
	if cfg.PostExitScanDelay < 0 {
		cfg.PostExitScanDelay = 0
	}
	return &Bridge{cfg: cfg, running: make(map[string]*invocation)}
}

// Locate resolves the configured executable.
func (b *Bridge) Locate() (string, error) {
	return Locate(b.cfg.Executable, b.cfg.SearchPaths)
}

// Run executes one command and blocks until the process has exited and the
// terminal event was delivered. sink is never called concurrently.
//
// A missing executable is reported as a *ConfigurationError before anything
// is spawned and without any event. A non-zero exit is not an error: it is
// reported by the complete event.
func (b *Bridge) Run(ctx context.Context, command string, opts Options, sink func(Event)) error {
	path, err := b.Locate()
	if err != nil {
		return err
	}
	opts = b.withDefaults(opts)

	cmd := exec.CommandContext(ctx, path, BuildArgs(opts)...)
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	inputID := opts.SessionID
	key := inputID
	if key == "" {
		key = identity.NewSessionMarker(time.Now())
	}
	inv := &invocation{cmd: cmd, done: make(chan struct{}), current: inputID}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBridgeClosed
	}
	if err := cmd.Start(); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("failed to start claude: %w", err)
	}
	b.running[key] = inv
	b.wg.Add(1)
	b.mu.Unlock()
	defer b.finish(inv)

	log.Printf("claude [%s]: started pid %d in %s (resume=%v)", key, cmd.Process.Pid, opts.WorkDir, opts.Resuming())

	var emitMu sync.Mutex
	emit := func(e Event) {
		emitMu.Lock()
		defer emitMu.Unlock()
		sink(e)
	}

	created := false
	announce := func(id string) {
		if created || id == "" {
			return
		}
		created = true
		inv.setSessionID(id)
		b.alias(id, inv)
		emit(Event{
			Kind:                EventSessionCreated,
			SessionID:           id,
			Replaces:            inputID,
			ReplacesPlaceholder: identity.IsPlaceholder(inputID),
		})
	}

	started := time.Now()
	go writeInput(stdin, opts.input(command), b.cfg.StdinGrace, inv.done)

	var lastStderr string
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			lastStderr = line
			emit(Event{Kind: EventError, SessionID: inv.sessionID(), Text: line})
		}
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if b.cfg.Debug {
			log.Printf("claude [%s]: event: %s", key, line)
		}

		ev, ok := ParseLine(line)
		if !ok {
			emit(Event{Kind: EventOutput, SessionID: inv.sessionID(), Text: string(line)})
			continue
		}
		announce(ev.SessionID)
		emit(Event{
			Kind:      EventOutput,
			SessionID: inv.sessionID(),
			Stream:    &ev,
			Data:      append(json.RawMessage(nil), line...),
		})
	}
	if err := scanner.Err(); err != nil {
		log.Printf("claude [%s]: read stdout: %v", key, err)
	}

	<-stderrDone
	waitErr := cmd.Wait()
	close(inv.done)

	if inv.aborted.Load() || ctx.Err() != nil {
		log.Printf("claude [%s]: aborted", key)
		emit(Event{Kind: EventAborted, SessionID: inv.sessionID()})
		return nil
	}

	if !created && identity.IsTransient(inputID) && b.cfg.Finder != nil {
		announce(b.recoverSessionID(ctx, opts.WorkDir, command, started))
	}

	code := exitCode(waitErr)
	done := Event{Kind: EventComplete, SessionID: inv.sessionID(), ExitCode: code}
	if code != 0 {
		done.Err = &ProcessError{ExitCode: code, Stderr: lastStderr}
	}
	log.Printf("claude [%s]: exited with code %d", key, code)
	emit(done)
	return nil
}

// recoverSessionID scans the logs for the command after a short delay. It
// returns "" when nothing matched.
func (b *Bridge) recoverSessionID(ctx context.Context, workDir, command string, started time.Time) string {
	select {
	case <-time.After(b.cfg.PostExitScanDelay):
	case <-ctx.Done():
		return ""
	}
	id, ok := b.cfg.Finder.FindSessionByCommand(workDir, command, started.Add(-b.cfg.RecoveryWindow))
	if !ok {
		log.Printf("claude: no session id captured for command in %s", workDir)
		return ""
	}
	log.Printf("claude: recovered session id %s from logs", id)
	return id
}

func writeInput(stdin io.WriteCloser, input string, grace time.Duration, done <-chan struct{}) {
	defer stdin.Close()
	if _, err := io.WriteString(stdin, input+"\n"); err != nil {
		return
	}
	select {
	case <-time.After(grace):
	case <-done:
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (b *Bridge) withDefaults(o Options) Options {
	if o.Model == "" {
		o.Model = b.cfg.Model
	}
	p := o.Permissions
	if p.Mode == "" && len(p.AllowedTools) == 0 && len(p.DisallowedTools) == 0 && !p.SkipPermissions {
		o.Permissions = b.cfg.Permissions
	}
	return o
}

// alias makes a running invocation reachable under its assigned id too.
func (b *Bridge) alias(id string, inv *invocation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.running[id]; !taken {
		b.running[id] = inv
	}
}

func (b *Bridge) finish(inv *invocation) {
	b.mu.Lock()
	for k, v := range b.running {
		if v == inv {
			delete(b.running, k)
		}
	}
	b.mu.Unlock()
	b.wg.Done()
}

// Abort terminates the invocation known under id. It returns false when no
// such invocation is running, including when it was already aborted and
// removed.
func (b *Bridge) Abort(id string) bool {
	b.mu.Lock()
	inv, ok := b.running[id]
	b.mu.Unlock()
	if !ok {
		return false
	}

	p := inv.cmd.Process
	if proc, err := ps.FindProcess(p.Pid); err == nil && proc == nil {
		return false
	}
	inv.aborted.Store(true)
	if err := p.Signal(syscall.SIGTERM); err != nil {
		_ = p.Kill()
	}

	go func() {
		select {
		case <-inv.done:
		case <-time.After(killGrace):
			if proc, err := ps.FindProcess(p.Pid); err == nil && proc != nil {
				log.Printf("claude [%s]: still running after SIGTERM, killing", id)
				_ = p.Kill()
			}
		}
	}()
	log.Printf("claude [%s]: abort requested", id)
	return true
}

// Running lists the session ids of running invocations.
func (b *Bridge) Running() []string {
	b.mu.Lock()
	seen := make(map[*invocation]bool)
	var out []string
	for k, inv := range b.running {
		if seen[inv] {
			continue
		}
		seen[inv] = true
		if id := inv.sessionID(); id != "" {
			out = append(out, id)
		} else {
			out = append(out, k)
		}
	}
	b.mu.Unlock()
	sort.Strings(out)
	return out
}

// Shutdown aborts every running invocation and waits for them to end, up to
// timeout.
func (b *Bridge) Shutdown(timeout time.Duration) {
	b.mu.Lock()
	b.closed = true
	ids := make([]string, 0, len(b.running))
	for k := range b.running {
		ids = append(ids, k)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.Abort(id)
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("claude: shutdown timed out with %d invocations running", len(b.Running()))
	}
}
