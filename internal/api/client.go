// Package api is the REST side channel next to the socket: terminal
// registration and status patches, both idempotent upserts keyed on
// terminal ID.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/retailpos/terminal/internal/status"
)

// Client makes REST calls to the central server.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a client targeting the given base URL
// (e.g. "http://pos.local:8080").
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterTerminal upserts the terminal's registration. Re-registering the
// same terminal ID updates rather than duplicates.
func (c *Client) RegisterTerminal(snap status.Snapshot) error {
	return c.do(http.MethodPut, "/api/terminals/"+url.PathEscape(snap.TerminalID), snap)
}

// PatchStatus updates the terminal's liveness and descriptive facts.
func (c *Client) PatchStatus(terminalID string, snap status.Snapshot) error {
	return c.do(http.MethodPatch, "/api/terminals/"+url.PathEscape(terminalID)+"/status", snap)
}

func (c *Client) do(method, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", method, path, err)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}
