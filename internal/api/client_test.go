package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/retailpos/terminal/internal/status"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func newRecordingServer(t *testing.T, statusCode int) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		requests = append(requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			body:   body,
		})
		w.WriteHeader(statusCode)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestRegisterTerminal(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusNoContent)
	c := NewClient(srv.URL, "secret")

	snap := status.Snapshot{TerminalID: "POS-ABC", Name: "checkout-3", Online: true}
	if err := c.RegisterTerminal(snap); err != nil {
		t.Fatalf("RegisterTerminal() error: %v", err)
	}

	if len(*requests) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(*requests))
	}
	req := (*requests)[0]
	if req.method != http.MethodPut {
		t.Errorf("method = %s, want PUT", req.method)
	}
	if req.path != "/api/terminals/POS-ABC" {
		t.Errorf("path = %s", req.path)
	}
	if req.auth != "Bearer secret" {
		t.Errorf("auth = %q, want bearer token", req.auth)
	}
	if req.body["terminalId"] != "POS-ABC" {
		t.Errorf("body terminalId = %v", req.body["terminalId"])
	}
}

func TestPatchStatus(t *testing.T) {
	srv, requests := newRecordingServer(t, http.StatusOK)
	c := NewClient(srv.URL, "")

	snap := status.Snapshot{TerminalID: "POS-ABC", Online: false}
	if err := c.PatchStatus("POS-ABC", snap); err != nil {
		t.Fatalf("PatchStatus() error: %v", err)
	}

	req := (*requests)[0]
	if req.method != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", req.method)
	}
	if req.path != "/api/terminals/POS-ABC/status" {
		t.Errorf("path = %s", req.path)
	}
	if req.auth != "" {
		t.Errorf("auth = %q, want none without token", req.auth)
	}
	if online, ok := req.body["online"].(bool); !ok || online {
		t.Errorf("body online = %v, want false", req.body["online"])
	}
}

func TestServerErrorSurfaces(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusInternalServerError)
	c := NewClient(srv.URL, "")

	err := c.PatchStatus("POS-ABC", status.Snapshot{TerminalID: "POS-ABC"})
	if err == nil {
		t.Fatal("PatchStatus() with 500 response should return error")
	}
}

func TestUnreachableServer(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "")
	if err := c.RegisterTerminal(status.Snapshot{TerminalID: "POS-ABC"}); err == nil {
		t.Fatal("RegisterTerminal() against unreachable server should return error")
	}
}
