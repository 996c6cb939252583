// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wingedpig/clauderelay/internal/claude"
	"github.com/wingedpig/clauderelay/internal/events"
	"github.com/wingedpig/clauderelay/internal/identity"
	"github.com/wingedpig/clauderelay/internal/projects"
)

// Chat message types.
const (
	MsgClaudeCommand   = "claude-command"
	MsgAbortSession    = "abort-session"
	MsgSessionCreated  = "session-created"
	MsgClaudeResponse  = "claude-response"
	MsgClaudeOutput    = "claude-output"
	MsgClaudeError     = "claude-error"
	MsgClaudeComplete  = "claude-complete"
	MsgSessionAborted  = "session-aborted"
	MsgProjectsUpdated = "projects_updated"
)

// Runner executes CLI invocations. It is implemented by *claude.Bridge.
type Runner interface {
	Run(ctx context.Context, command string, opts claude.Options, sink func(claude.Event)) error
	Abort(id string) bool
}

// ClientMessage is a message from a chat client.
type ClientMessage struct {
	Type      string         `json:"type"`
	Command   string         `json:"command,omitempty"`
	Options   claude.Options `json:"options"`
	SessionID string         `json:"sessionId,omitempty"`
}

// ServerMessage is a message to a chat client. MessageID is unique per
// message so clients can drop redeliveries.
type ServerMessage struct {
	Type              string             `json:"type"`
	MessageID         string             `json:"messageId"`
	Timestamp         time.Time          `json:"timestamp"`
	SessionID         string             `json:"sessionId,omitempty"`
	ReplacesTemporary string             `json:"replacesTemporary,omitempty"`
	Data              json.RawMessage    `json:"data,omitempty"`
	Error             string             `json:"error,omitempty"`
	Code              string             `json:"code,omitempty"`
	ExitCode          *int               `json:"exitCode,omitempty"`
	Aborted           bool               `json:"aborted,omitempty"`
	Success           *bool              `json:"success,omitempty"`
	Projects          []projects.Project `json:"projects,omitempty"`
	ChangeType        string             `json:"changeType,omitempty"`
	ChangedFile       string             `json:"changedFile,omitempty"`
}

// ChatHandler bridges WebSocket chat clients to CLI invocations and pushes
// project snapshots to them.
type ChatHandler struct {
	runner   Runner
	projects ProjectService
	bus      events.Bus

	// ctx outlives connections: an invocation keeps running when its
	// client goes away and is only stopped by an abort or shutdown.
	ctx context.Context
}

// NewChatHandler creates a chat handler. Invocations run under ctx.
func NewChatHandler(ctx context.Context, runner Runner, svc ProjectService, bus events.Bus) *ChatHandler {
	return &ChatHandler{runner: runner, projects: svc, bus: bus, ctx: ctx}
}

// chatConn serializes writes to one WebSocket.
type chatConn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (c *chatConn) send(msg ServerMessage) error {
	msg.MessageID = uuid.New().String()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

func (c *chatConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

func (c *chatConn) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// WebSocket serves one chat connection.
func (h *ChatHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	conn := &chatConn{ws: ws}
	defer conn.close()

	if h.bus != nil {
		subID, err := h.bus.SubscribeAsync(events.ProjectsUpdated, func(ctx context.Context, ev events.Event) {
			h.pushSnapshot(ctx, conn, ev)
		}, 16)
		if err != nil {
			log.Printf("chat: subscribe: %v", err)
		} else {
			defer h.bus.Unsubscribe(subID)
		}
	}

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("chat: bad client message: %v", err)
			continue
		}

		switch msg.Type {
		case MsgClaudeCommand:
			go h.runCommand(conn, msg)
		case MsgAbortSession:
			ok := h.runner.Abort(msg.SessionID)
			conn.send(ServerMessage{Type: MsgSessionAborted, SessionID: msg.SessionID, Success: &ok})
		default:
			log.Printf("chat: unknown message type %q", msg.Type)
		}
	}
}

// runCommand runs one invocation and relays its events to conn.
func (h *ChatHandler) runCommand(conn *chatConn, msg ClientMessage) {
	opts := msg.Options
	if opts.WorkDir == "" && opts.ProjectName != "" && h.projects != nil {
		path, err := h.projects.ResolvePath(opts.ProjectName)
		if err != nil {
			h.fail(conn, opts.SessionID, ErrNotFound, err)
			return
		}
		opts.WorkDir = path
	}

	err := h.runner.Run(h.ctx, msg.Command, opts, func(ev claude.Event) {
		h.relay(conn, opts.ProjectName, ev)
	})
	if err == nil {
		return
	}

	code := ErrProcessError
	var cfgErr *claude.ConfigurationError
	if errors.As(err, &cfgErr) {
		code = ErrConfigurationError
	}
	h.fail(conn, opts.SessionID, code, err)
}

// fail reports an invocation that never started. The complete message
// ends the client's turn.
func (h *ChatHandler) fail(conn *chatConn, sessionID, code string, err error) {
	log.Printf("chat: command failed: %v", err)
	conn.send(ServerMessage{Type: MsgClaudeError, SessionID: sessionID, Error: err.Error(), Code: code})
	exit := -1
	conn.send(ServerMessage{Type: MsgClaudeComplete, SessionID: sessionID, ExitCode: &exit, Error: err.Error()})
}

// relay translates a bridge event into a chat message.
func (h *ChatHandler) relay(conn *chatConn, project string, ev claude.Event) {
	msg := ServerMessage{SessionID: ev.SessionID}

	switch ev.Kind {
	case claude.EventSessionCreated:
		msg.Type = MsgSessionCreated
		if identity.IsTransient(ev.Replaces) {
			msg.ReplacesTemporary = ev.Replaces
		}
		publish(h.ctx, h.bus, events.SessionCreated, project, ev.SessionID,
			map[string]interface{}{"replaces": ev.Replaces})

	case claude.EventOutput:
		if ev.Stream != nil {
			msg.Type = MsgClaudeResponse
			msg.Data = ev.Data
		} else {
			msg.Type = MsgClaudeOutput
			msg.Data, _ = json.Marshal(ev.Text)
		}

	case claude.EventError:
		msg.Type = MsgClaudeError
		msg.Error = ev.Text

	case claude.EventComplete:
		msg.Type = MsgClaudeComplete
		code := ev.ExitCode
		msg.ExitCode = &code
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
			msg.Code = ErrProcessError
		}
		publish(h.ctx, h.bus, events.SessionCompleted, project, ev.SessionID,
			map[string]interface{}{"exitCode": ev.ExitCode})

	case claude.EventAborted:
		msg.Type = MsgClaudeComplete
		code := -1
		msg.ExitCode = &code
		msg.Aborted = true
		publish(h.ctx, h.bus, events.SessionAborted, project, ev.SessionID, nil)

	default:
		return
	}

	if err := conn.send(msg); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Printf("chat: write %s: %v", msg.Type, err)
	}
}

// pushSnapshot forwards a projects.updated event.
func (h *ChatHandler) pushSnapshot(ctx context.Context, conn *chatConn, ev events.Event) {
	snapshot, ok := ev.Payload["projects"].([]projects.Project)
	if !ok {
		if h.projects == nil {
			return
		}
		var err error
		if snapshot, err = h.projects.Snapshot(ctx); err != nil {
			log.Printf("chat: snapshot: %v", err)
			return
		}
	}
	if snapshot == nil {
		snapshot = []projects.Project{}
	}
	changeType, _ := ev.Payload["changeType"].(string)
	changedFile, _ := ev.Payload["changedFile"].(string)

	conn.send(ServerMessage{
		Type:        MsgProjectsUpdated,
		Timestamp:   ev.Timestamp,
		Projects:    snapshot,
		ChangeType:  changeType,
		ChangedFile: changedFile,
	})
}
