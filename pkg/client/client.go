// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the clauderelay API.
//
// The relay serves the Claude CLI's session history over HTTP and runs CLI
// invocations on behalf of WebSocket clients. This package gives typed access
// to the REST surface and a small wrapper around the chat WebSocket.
//
// # Getting Started
//
// Create a client pointing to your relay:
//
//	c := client.New("http://localhost:3001")
//
// The client provides access to different API resources through sub-clients:
//
//	// List projects with their most recent sessions
//	projects, err := c.Projects.List(ctx)
//
//	// Page through a project's sessions
//	page, err := c.Sessions.List(ctx, "-home-dev-demo", &client.PageOptions{Limit: 20})
//
//	// Export a transcript
//	doc, err := c.Sessions.Export(ctx, "-home-dev-demo", sessionID, client.ExportYAML)
//
// # Chat
//
// Commands are sent over a WebSocket opened with [Client.DialChat]:
//
//	conn, err := c.DialChat(ctx)
//	err = conn.SendCommand("explain main.go", client.CommandOptions{ProjectName: "-home-dev-demo"})
//	for {
//	    msg, err := conn.ReadMessage()
//	    ...
//	}
//
// # API Versioning
//
// The relay uses date-based API versioning. By default, the client uses the
// latest API version. You can pin to a specific version for stability:
//
//	c := client.New("http://localhost:3001", client.WithVersion("2026-10-01"))
//
// # Error Handling
//
// API errors are returned as *APIError values, which include an error code
// and message:
//
//	_, err := c.Projects.Rename(ctx, "unknown", "x")
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == "NOT_FOUND" {
//	    ...
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a clauderelay API client.
//
// The Client is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client

	// Projects lists, registers, renames and removes projects.
	Projects *ProjectClient

	// Sessions pages through sessions and reads, exports or deletes them.
	Sessions *SessionClient

	// Checkpoints records and restores working-tree checkpoints.
	Checkpoints *CheckpointClient

	// Events reads the server's recent event history.
	Events *EventClient
}

// Option configures a [Client].
type Option func(*Client)

// New creates a new client with the given base URL and options.
//
// By default, the client uses the latest API version ([LatestVersion]) and a
// 30-second HTTP timeout.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: LatestVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Projects = &ProjectClient{c: c}
	c.Sessions = &SessionClient{c: c}
	c.Checkpoints = &CheckpointClient{c: c}
	c.Events = &EventClient{c: c}

	return c
}

// WithVersion sets the API version to use for all requests.
func WithVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithHTTPClient sets a custom HTTP client for making requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for all requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Version returns the API version being used.
func (c *Client) Version() string {
	return c.version
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health reports server status.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	data, err := c.get(ctx, "/api/v1/health")
	if err != nil {
		return nil, err
	}
	var h Health
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse health: %w", err)
	}
	return &h, nil
}

// apiResponse is the standard API response envelope.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError represents an error response from the relay.
//
// Common error codes include:
//   - "NOT_FOUND": the project, session or checkpoint does not exist
//   - "BAD_REQUEST": the request was malformed
//   - "CONFLICT": a project already exists for the path
//   - "CONFIGURATION_ERROR": the CLI executable could not be found
//   - "CHECKPOINT_ERROR": a checkpoint could not be recorded
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`

	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.sendJSON(ctx, http.MethodPost, path, body)
}

func (c *Client) patchJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.sendJSON(ctx, http.MethodPatch, path, body)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, method, path, bytes.NewReader(data))
}

func (c *Client) delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(VersionHeader, c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do performs an HTTP request and parses the response envelope.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// getRaw performs a GET for endpoints that answer with a document instead of
// the envelope. Errors still arrive enveloped.
func (c *Client) getRaw(ctx context.Context, path string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, err := c.parseResponse(resp)
		return nil, "", err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) parseResponse(resp *http.Response) (json.RawMessage, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &APIError{
				Message:    fmt.Sprintf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
				StatusCode: resp.StatusCode,
			}
		}
		return respBody, nil
	}

	if apiResp.Error != nil {
		apiResp.Error.StatusCode = resp.StatusCode
		return nil, apiResp.Error
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{
			Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	return apiResp.Data, nil
}
