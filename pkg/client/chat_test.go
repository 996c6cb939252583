// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoChatServer answers every client message with a scripted reply.
func echoChatServer(t *testing.T, received chan<- clientMessage) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			received <- msg

			switch msg.Type {
			case MsgClaudeCommand:
				exit := 0
				conn.WriteJSON(map[string]interface{}{
					"type": MsgSessionCreated, "messageId": "m1", "sessionId": "abc-real",
					"replacesTemporary": msg.Options.SessionID,
				})
				conn.WriteJSON(map[string]interface{}{
					"type": MsgClaudeOutput, "messageId": "m2", "sessionId": "abc-real", "data": "hello",
				})
				conn.WriteJSON(map[string]interface{}{
					"type": MsgClaudeComplete, "messageId": "m3", "sessionId": "abc-real", "exitCode": exit,
				})
			case MsgAbortSession:
				conn.WriteJSON(map[string]interface{}{
					"type": MsgSessionAborted, "messageId": "m4", "sessionId": msg.SessionID, "success": false,
				})
			}
		}
	}))
}

func TestChatConn(t *testing.T) {
	received := make(chan clientMessage, 4)
	server := echoChatServer(t, received)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := New(server.URL).DialChat(ctx)
	if err != nil {
		t.Fatalf("DialChat() error = %v", err)
	}
	defer conn.Close()

	err = conn.SendCommand("hi", CommandOptions{SessionID: "temp-1", ProjectName: "p", Tools: ToolSettings{PermissionMode: "plan"}})
	if err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	sent := <-received
	if sent.Type != MsgClaudeCommand || sent.Command != "hi" {
		t.Errorf("sent = %+v", sent)
	}
	if sent.Options.ProjectName != "p" || sent.Options.Tools.PermissionMode != "plan" {
		t.Errorf("sent options = %+v", sent.Options)
	}

	var msgs []*ServerMessage
	for len(msgs) < 3 {
		msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		msgs = append(msgs, msg)
	}

	if msgs[0].Type != MsgSessionCreated || msgs[0].ReplacesTemporary != "temp-1" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Text() != "hello" {
		t.Errorf("msgs[1].Text() = %q, want %q", msgs[1].Text(), "hello")
	}
	if msgs[2].ExitCode == nil || *msgs[2].ExitCode != 0 {
		t.Errorf("msgs[2].ExitCode = %v", msgs[2].ExitCode)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(msgs[2].Raw, &raw); err != nil || raw["type"] != MsgClaudeComplete {
		t.Errorf("Raw = %s", msgs[2].Raw)
	}

	if err := conn.Abort("abc-real"); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	if sent := <-received; sent.Type != MsgAbortSession || sent.SessionID != "abc-real" {
		t.Errorf("sent = %+v", sent)
	}
	msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if msg.Success == nil || *msg.Success {
		t.Errorf("Success = %v, want false", msg.Success)
	}
}

func TestDialChat_Refused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := New(server.URL).DialChat(ctx); err == nil {
		t.Error("DialChat() to closed server succeeded")
	}
}
