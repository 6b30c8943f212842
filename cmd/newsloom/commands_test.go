package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

// withClient routes every command through the test server for the duration of
// one test.
func withClient(t *testing.T, ts *testServer) {
	t.Helper()
	orig := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = orig })
}

var ctx = context.Background()

func TestRebuildCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /rebuild": `{"status":"queued","job_id":"job-123"}`,
	})
	withClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"rebuild", "--incremental"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Method != "POST" {
		t.Errorf("method = %q, want POST", r.Method)
	}
	if r.Path != "/rebuild?incremental=true" {
		t.Errorf("path = %q, want /rebuild?incremental=true", r.Path)
	}
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
}

func TestDetectCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /detections/run": `{"surges":1,"reactivations":0,"new_actors":2,"alerts_created":3}`,
	})
	withClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"detect"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 || ts.requests[0].Path != "/detections/run" {
		t.Errorf("requests = %+v", ts.requests)
	}
}

func TestStorylinesListFilters(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /storylines": `{"storylines":[{"id":1,"label":"Port strike","status":"active","momentum_score":0.9,"article_count":4,"first_date":"2025-01-01","last_date":"2025-01-05"}]}`,
	})
	withClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"storylines", "list", "--status", "active", "--min-momentum", "0.5"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	path := ts.requests[0].Path
	if !strings.Contains(path, "status=active") {
		t.Errorf("path %q missing status filter", path)
	}
	if !strings.Contains(path, "min_momentum=0.5") {
		t.Errorf("path %q missing momentum filter", path)
	}
}

// The momentum filter is only sent when the flag is set: a bare list must
// not filter on the flag's zero value.
func TestStorylinesListOmitsUnsetFlags(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /storylines": `{"storylines":[]}`,
	})
	withClient(t, ts)
	defer rootCmd.SetArgs(nil)

	// Cobra keeps flag values and Changed across Execute calls, so clear
	// anything earlier tests set on the shared command.
	storylinesListCmd.Flags().Visit(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})

	rootCmd.SetArgs([]string{"storylines", "list"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if path := ts.requests[0].Path; path != "/storylines" {
		t.Errorf("path = %q, want bare /storylines", path)
	}
}

func TestStorylinesShowRequiresID(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"storylines", "show"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected error for missing id argument")
	}
}

func TestAlertsAck(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /alerts/abc-123/acknowledge": `{"success":true,"updated":1}`,
	})
	withClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"alerts", "ack", "abc-123"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 || ts.requests[0].Path != "/alerts/abc-123/acknowledge" {
		t.Errorf("requests = %+v", ts.requests)
	}
}

func TestClientErrorBody(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().get(ctx, "/storylines/99")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var out any
	err = decodeJSON(resp, &out)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want status and body", err.Error())
	}
}

func TestStatsCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /stats": `{"storylines":{"total":3,"by_status":{"active":2,"dormant":1}},"alerts":{"total":5,"unacknowledged":2,"recent_24h":1}}`,
	})
	withClient(t, ts)
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"stats"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ts.requests) != 1 || ts.requests[0].Path != "/stats" {
		t.Errorf("requests = %+v", ts.requests)
	}
}
