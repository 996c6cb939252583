// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// mockServer creates a test server that returns the given response.
func mockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

// apiHandler creates a handler that returns a standard API response.
func apiHandler(data interface{}, statusCode int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}
}

// apiErrorHandler creates a handler that returns an API error.
func apiErrorHandler(code, message string, statusCode int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": code, "message": message},
		})
	}
}

// recorded is what a recordingHandler saw.
type recorded struct {
	method string
	path   string
	query  string
	body   map[string]interface{}
}

// recordingHandler records the request and answers with data.
func recordingHandler(rec *recorded, data interface{}, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.EscapedPath()
		rec.query = r.URL.RawQuery
		if r.Body != nil {
			raw, _ := io.ReadAll(r.Body)
			if len(raw) > 0 {
				json.Unmarshal(raw, &rec.body)
			}
		}
		apiHandler(data, status)(w, r)
	}
}

func TestNew(t *testing.T) {
	c := New("http://localhost:3001")

	if c.BaseURL() != "http://localhost:3001" {
		t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), "http://localhost:3001")
	}
	if c.Version() != LatestVersion {
		t.Errorf("Version() = %q, want %q", c.Version(), LatestVersion)
	}
	if c.Projects == nil || c.Sessions == nil || c.Checkpoints == nil || c.Events == nil {
		t.Error("sub-client is nil")
	}
}

func TestNewWithOptions(t *testing.T) {
	t.Run("WithVersion", func(t *testing.T) {
		c := New("http://localhost:3001", WithVersion("2026-01-01"))
		if c.Version() != "2026-01-01" {
			t.Errorf("Version() = %q, want %q", c.Version(), "2026-01-01")
		}
	})

	t.Run("WithHTTPClient", func(t *testing.T) {
		custom := &http.Client{Timeout: 10 * time.Second}
		c := New("http://localhost:3001", WithHTTPClient(custom))
		if c.httpClient != custom {
			t.Error("custom HTTP client not installed")
		}
	})

	t.Run("WithTimeout", func(t *testing.T) {
		c := New("http://localhost:3001", WithTimeout(time.Minute))
		if c.httpClient.Timeout != time.Minute {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, time.Minute)
		}
	})

	t.Run("trailing slash removed", func(t *testing.T) {
		c := New("http://localhost:3001/")
		if c.BaseURL() != "http://localhost:3001" {
			t.Errorf("BaseURL() = %q, want trailing slash removed", c.BaseURL())
		}
	})
}

func TestAPIError(t *testing.T) {
	err := &APIError{Code: "NOT_FOUND", Message: "project not found"}
	if err.Error() != "NOT_FOUND: project not found" {
		t.Errorf("Error() = %q", err.Error())
	}

	err2 := &APIError{Message: "Something went wrong"}
	if err2.Error() != "Something went wrong" {
		t.Errorf("Error() = %q, want %q", err2.Error(), "Something went wrong")
	}
}

func TestVersionHeader(t *testing.T) {
	var received string
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get(VersionHeader)
		apiHandler([]Project{}, http.StatusOK)(w, r)
	})
	defer server.Close()

	c := New(server.URL, WithVersion("2026-10-01"))
	_, _ = c.Projects.List(context.Background())

	if received != "2026-10-01" {
		t.Errorf("%s header = %q, want %q", VersionHeader, received, "2026-10-01")
	}
}

func TestHealth(t *testing.T) {
	server := mockServer(t, apiHandler(map[string]interface{}{
		"status": "ok", "version": "1.0.0", "running": []string{"abc"}, "parseErrors": 2,
	}, http.StatusOK))
	defer server.Close()

	h, err := New(server.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if h.Status != "ok" || h.Version != "1.0.0" {
		t.Errorf("Health() = %+v", h)
	}
	if len(h.Running) != 1 || h.ParseErrors != 2 {
		t.Errorf("Health() running = %v parseErrors = %d", h.Running, h.ParseErrors)
	}
}

func TestProjectClient_List(t *testing.T) {
	snapshot := []Project{{
		Name:        "-home-dev-demo",
		DisplayName: "demo",
		Path:        "/home/dev/demo",
		Sessions:    []Session{{ID: "abc", Summary: "fix bug", MessageCount: 4}},
		SessionMeta: SessionMeta{Total: 12, HasMore: true},
	}}
	server := mockServer(t, apiHandler(snapshot, http.StatusOK))
	defer server.Close()

	result, err := New(server.URL).Projects.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("List() returned %d projects, want 1", len(result))
	}
	if result[0].DisplayName != "demo" {
		t.Errorf("DisplayName = %q, want %q", result[0].DisplayName, "demo")
	}
	if !result[0].SessionMeta.HasMore || result[0].SessionMeta.Total != 12 {
		t.Errorf("SessionMeta = %+v", result[0].SessionMeta)
	}
	if result[0].Sessions[0].Summary != "fix bug" {
		t.Errorf("Sessions[0].Summary = %q", result[0].Sessions[0].Summary)
	}
}

func TestProjectClient_Create(t *testing.T) {
	var rec recorded
	server := mockServer(t, recordingHandler(&rec, Project{Name: "-srv-app", IsManuallyAdded: true}, http.StatusCreated))
	defer server.Close()

	p, err := New(server.URL).Projects.Create(context.Background(), "/srv/app", "App")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.method != http.MethodPost || rec.path != "/api/v1/projects" {
		t.Errorf("request = %s %s", rec.method, rec.path)
	}
	if rec.body["path"] != "/srv/app" || rec.body["displayName"] != "App" {
		t.Errorf("body = %v", rec.body)
	}
	if !p.IsManuallyAdded {
		t.Error("IsManuallyAdded = false")
	}
}

func TestProjectClient_Rename(t *testing.T) {
	var rec recorded
	server := mockServer(t, recordingHandler(&rec, Project{Name: "-home-dev-demo", DisplayName: "Demo", IsCustomName: true}, http.StatusOK))
	defer server.Close()

	p, err := New(server.URL).Projects.Rename(context.Background(), "-home-dev-demo", "Demo")
	if err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if rec.method != http.MethodPatch || rec.path != "/api/v1/projects/-home-dev-demo" {
		t.Errorf("request = %s %s", rec.method, rec.path)
	}
	if rec.body["displayName"] != "Demo" {
		t.Errorf("body = %v", rec.body)
	}
	if !p.IsCustomName {
		t.Error("IsCustomName = false")
	}
}

func TestProjectClient_Delete(t *testing.T) {
	var rec recorded
	server := mockServer(t, recordingHandler(&rec, map[string]string{"status": "deleted"}, http.StatusOK))
	defer server.Close()

	if err := New(server.URL).Projects.Delete(context.Background(), "-home-dev-demo"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if rec.method != http.MethodDelete || rec.path != "/api/v1/projects/-home-dev-demo" {
		t.Errorf("request = %s %s", rec.method, rec.path)
	}
}

func TestProjectClient_NotFound(t *testing.T) {
	server := mockServer(t, apiErrorHandler("NOT_FOUND", "project not found", http.StatusNotFound))
	defer server.Close()

	_, err := New(server.URL).Projects.Rename(context.Background(), "nope", "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != "NOT_FOUND" || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestSessionClient_List(t *testing.T) {
	var rec recorded
	page := SessionPage{Sessions: []Session{{ID: "s1"}, {ID: "s2"}}, Total: 7, HasMore: true, Limit: 2, Offset: 4}
	server := mockServer(t, recordingHandler(&rec, page, http.StatusOK))
	defer server.Close()

	result, err := New(server.URL).Sessions.List(context.Background(), "-home-dev-demo", &PageOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if rec.path != "/api/v1/projects/-home-dev-demo/sessions" {
		t.Errorf("path = %q", rec.path)
	}
	if rec.query != "limit=2&offset=4" {
		t.Errorf("query = %q, want %q", rec.query, "limit=2&offset=4")
	}
	if len(result.Sessions) != 2 || !result.HasMore || result.Total != 7 {
		t.Errorf("page = %+v", result)
	}
}

func TestSessionClient_Messages(t *testing.T) {
	server := mockServer(t, apiHandler(map[string]interface{}{
		"sessionId": "abc",
		"entries":   []map[string]string{{"type": "user", "text": "hi"}},
	}, http.StatusOK))
	defer server.Close()

	tr, err := New(server.URL).Sessions.Messages(context.Background(), "p", "abc")
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if tr.SessionID != "abc" {
		t.Errorf("SessionID = %q", tr.SessionID)
	}
	if !strings.Contains(string(tr.Entries), `"type":"user"`) {
		t.Errorf("Entries = %s", tr.Entries)
	}
}

func TestSessionClient_RawMessages(t *testing.T) {
	var rec recorded
	server := mockServer(t, recordingHandler(&rec, map[string]interface{}{
		"messages": []map[string]string{{"type": "user", "sessionId": "abc"}},
	}, http.StatusOK))
	defer server.Close()

	msgs, err := New(server.URL).Sessions.RawMessages(context.Background(), "p", "abc")
	if err != nil {
		t.Fatalf("RawMessages() error = %v", err)
	}
	if rec.query != "format=raw" {
		t.Errorf("query = %q", rec.query)
	}
	if len(msgs) != 1 {
		t.Errorf("got %d messages, want 1", len(msgs))
	}
}

func TestSessionClient_Export(t *testing.T) {
	var query string
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/yaml")
		w.Write([]byte("schema: clauderelay.transcript/v1\n"))
	})
	defer server.Close()

	doc, err := New(server.URL).Sessions.Export(context.Background(), "p", "abc", ExportYAML)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if query != "format=yaml" {
		t.Errorf("query = %q", query)
	}
	if !strings.HasPrefix(string(doc), "schema:") {
		t.Errorf("doc = %q", doc)
	}
}

func TestSessionClient_ExportError(t *testing.T) {
	server := mockServer(t, apiErrorHandler("NOT_FOUND", "session not found", http.StatusNotFound))
	defer server.Close()

	_, err := New(server.URL).Sessions.Export(context.Background(), "p", "gone", ExportJSON)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "NOT_FOUND" {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestSessionClient_Delete(t *testing.T) {
	var rec recorded
	server := mockServer(t, recordingHandler(&rec, map[string]string{"status": "deleted"}, http.StatusOK))
	defer server.Close()

	if err := New(server.URL).Sessions.Delete(context.Background(), "p", "abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if rec.method != http.MethodDelete || rec.path != "/api/v1/projects/p/sessions/abc" {
		t.Errorf("request = %s %s", rec.method, rec.path)
	}
}

func TestCheckpointClient(t *testing.T) {
	cp := Checkpoint{ID: "cp1", Project: "p", SessionID: "abc", Content: "add tests", Ref: "refs/clauderelay/checkpoints/cp1"}

	t.Run("Create", func(t *testing.T) {
		var rec recorded
		server := mockServer(t, recordingHandler(&rec, cp, http.StatusCreated))
		defer server.Close()

		got, err := New(server.URL).Checkpoints.Create(context.Background(), "p", CheckpointRequest{SessionID: "abc", Content: "add tests"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if rec.method != http.MethodPost || rec.path != "/api/v1/projects/p/checkpoints" {
			t.Errorf("request = %s %s", rec.method, rec.path)
		}
		if rec.body["content"] != "add tests" {
			t.Errorf("body = %v", rec.body)
		}
		if got.ID != "cp1" {
			t.Errorf("ID = %q", got.ID)
		}
	})

	t.Run("List", func(t *testing.T) {
		server := mockServer(t, apiHandler([]Checkpoint{cp}, http.StatusOK))
		defer server.Close()

		got, err := New(server.URL).Checkpoints.List(context.Background(), "p")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 1 || got[0].Ref == "" {
			t.Errorf("List() = %+v", got)
		}
	})

	t.Run("Restore", func(t *testing.T) {
		var rec recorded
		server := mockServer(t, recordingHandler(&rec, cp, http.StatusOK))
		defer server.Close()

		if _, err := New(server.URL).Checkpoints.Restore(context.Background(), "p", "cp1"); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if rec.method != http.MethodPost || rec.path != "/api/v1/projects/p/checkpoints/cp1/restore" {
			t.Errorf("request = %s %s", rec.method, rec.path)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		var rec recorded
		server := mockServer(t, recordingHandler(&rec, map[string]string{"status": "deleted"}, http.StatusOK))
		defer server.Close()

		if err := New(server.URL).Checkpoints.Delete(context.Background(), "p", "cp1"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if rec.method != http.MethodDelete {
			t.Errorf("method = %s", rec.method)
		}
	})

	t.Run("Error", func(t *testing.T) {
		server := mockServer(t, apiErrorHandler("CHECKPOINT_ERROR", "not a git repository", http.StatusInternalServerError))
		defer server.Close()

		_, err := New(server.URL).Checkpoints.Create(context.Background(), "p", CheckpointRequest{Content: "x"})
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != "CHECKPOINT_ERROR" {
			t.Errorf("error = %v, want CHECKPOINT_ERROR", err)
		}
	})
}

func TestEventClient_List(t *testing.T) {
	var rec recorded
	events := []Event{{ID: "e1", Type: "session.created", Project: "p", SessionID: "abc"}}
	server := mockServer(t, recordingHandler(&rec, events, http.StatusOK))
	defer server.Close()

	since := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	got, err := New(server.URL).Events.List(context.Background(), &ListOptions{
		Limit:   5,
		Types:   []string{"session.*"},
		Project: "p",
		Since:   since,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, want := range []string{"limit=5", "type=session.%2A", "project=p", "since=2026-10-01T12%3A00%3A00Z"} {
		if !strings.Contains(rec.query, want) {
			t.Errorf("query %q missing %q", rec.query, want)
		}
	}
	if len(got) != 1 || got[0].Type != "session.created" {
		t.Errorf("List() = %+v", got)
	}
}

func TestParseResponse_NonEnvelopeError(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	})
	defer server.Close()

	_, err := New(server.URL).Projects.List(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || !strings.Contains(apiErr.Message, "gateway down") {
		t.Errorf("APIError = %+v", apiErr)
	}
}
