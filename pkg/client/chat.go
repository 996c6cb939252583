// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Chat message types.
const (
	// Sent by the client.
	MsgClaudeCommand = "claude-command"
	MsgAbortSession  = "abort-session"

	// Sent by the server.
	MsgSessionCreated  = "session-created"
	MsgClaudeResponse  = "claude-response"
	MsgClaudeOutput    = "claude-output"
	MsgClaudeError     = "claude-error"
	MsgClaudeComplete  = "claude-complete"
	MsgSessionAborted  = "session-aborted"
	MsgProjectsUpdated = "projects_updated"
)

// ToolSettings controls which tools the CLI may use without asking.
type ToolSettings struct {
	PermissionMode  string   `json:"permissionMode,omitempty"`
	AllowedTools    []string `json:"allowedTools,omitempty"`
	DisallowedTools []string `json:"disallowedTools,omitempty"`
	SkipPermissions bool     `json:"skipPermissions,omitempty"`
}

// CommandOptions describes one CLI invocation.
type CommandOptions struct {
	// SessionID is the session to continue, or a temporary id for a new
	// conversation. The server reports the CLI-assigned id in a
	// session-created message.
	SessionID string `json:"sessionId,omitempty"`
	Resume    bool   `json:"resume,omitempty"`

	// WorkDir defaults to the directory of ProjectName.
	WorkDir     string `json:"cwd,omitempty"`
	ProjectName string `json:"projectName,omitempty"`

	Model string       `json:"model,omitempty"`
	Tools ToolSettings `json:"toolsSettings,omitempty"`

	// Context is prior conversation text for a session that is not resumed.
	Context string `json:"context,omitempty"`
}

type clientMessage struct {
	Type      string          `json:"type"`
	Command   string          `json:"command,omitempty"`
	Options   *CommandOptions `json:"options,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// ServerMessage is one message received on the chat WebSocket. Only the
// fields relevant to Type are set.
type ServerMessage struct {
	Type      string    `json:"type"`
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId,omitempty"`

	// ReplacesTemporary is the temporary id a session-created message
	// supersedes.
	ReplacesTemporary string `json:"replacesTemporary,omitempty"`

	// Data is the raw stream-json line of a claude-response, or a JSON string
	// for claude-output.
	Data json.RawMessage `json:"data,omitempty"`

	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
	ExitCode *int   `json:"exitCode,omitempty"`
	Aborted  bool   `json:"aborted,omitempty"`
	Success  *bool  `json:"success,omitempty"`

	Projects    []Project `json:"projects,omitempty"`
	ChangeType  string    `json:"changeType,omitempty"`
	ChangedFile string    `json:"changedFile,omitempty"`

	// Raw is the message as received.
	Raw json.RawMessage `json:"-"`
}

// Text returns the text of a claude-output message.
func (m *ServerMessage) Text() string {
	var s string
	if json.Unmarshal(m.Data, &s) != nil {
		return ""
	}
	return s
}

// ChatConn is a chat WebSocket connection. Sends are safe for concurrent
// use; ReadMessage must be called from a single goroutine.
type ChatConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialChat opens the chat WebSocket.
func (c *Client) DialChat(ctx context.Context) (*ChatConn, error) {
	wsURL := c.baseURL + "/ws"
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	header := http.Header{}
	header.Set(VersionHeader, c.version)

	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	return &ChatConn{conn: conn}, nil
}

func (cc *ChatConn) send(msg clientMessage) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return cc.conn.WriteJSON(msg)
}

// SendCommand starts a CLI invocation.
func (cc *ChatConn) SendCommand(command string, opts CommandOptions) error {
	return cc.send(clientMessage{Type: MsgClaudeCommand, Command: command, Options: &opts})
}

// Abort asks the server to stop the invocation running for sessionID. The
// outcome arrives as a session-aborted message.
func (cc *ChatConn) Abort(sessionID string) error {
	return cc.send(clientMessage{Type: MsgAbortSession, SessionID: sessionID})
}

// ReadMessage blocks until the next server message arrives.
func (cc *ChatConn) ReadMessage() (*ServerMessage, error) {
	_, data, err := cc.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	msg.Raw = data
	return &msg, nil
}

// Close closes the connection.
func (cc *ChatConn) Close() error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return cc.conn.Close()
}
