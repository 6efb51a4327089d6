package runloop

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL, APIKey: "rl-test-key"})
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(Blueprint{ID: "bpt-1"})
	})

	if _, err := client.GetBlueprint(context.Background(), "bpt-1"); err != nil {
		t.Fatalf("GetBlueprint failed: %v", err)
	}
	if gotAuth != "Bearer rl-test-key" {
		t.Fatalf("unexpected authorization header: %q", gotAuth)
	}
}

func TestCreateBlueprint(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotReq CreateBlueprintRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		json.NewEncoder(w).Encode(Blueprint{ID: "bpt-1", Name: gotReq.Name, Status: BlueprintProvisioning})
	})

	req := CreateBlueprintRequest{
		Name:       "agentsh-sandbox",
		Dockerfile: "FROM ubuntu:24.04",
		FileMounts: map[string]string{"/tmp/agentsh-config/config.yaml": "policy_dir: /etc/agentsh/policies"},
		LaunchParameters: &LaunchParameters{
			LaunchCommands: []string{"sudo cp /tmp/agentsh-config/config.yaml /etc/agentsh/config.yaml"},
		},
	}
	bp, err := client.CreateBlueprint(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateBlueprint failed: %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/v1/blueprints" {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type: %q", gotContentType)
	}
	if gotReq.Name != req.Name || gotReq.Dockerfile != req.Dockerfile {
		t.Fatalf("request body mangled: %+v", gotReq)
	}
	if len(gotReq.LaunchParameters.LaunchCommands) != 1 {
		t.Fatalf("launch commands lost: %+v", gotReq.LaunchParameters)
	}
	if bp.ID != "bpt-1" || bp.Status != BlueprintProvisioning {
		t.Fatalf("unexpected blueprint: %+v", bp)
	}
}

func TestGetBlueprintPath(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(Blueprint{ID: "bpt-1", Status: BlueprintBuildComplete})
	})

	bp, err := client.GetBlueprint(context.Background(), "bpt-1")
	if err != nil {
		t.Fatalf("GetBlueprint failed: %v", err)
	}
	if gotPath != "/v1/blueprints/bpt-1" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if !bp.Status.Terminal() {
		t.Fatalf("build_complete should be terminal: %+v", bp)
	}
}

func TestGetBlueprintLogsJoinsMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/blueprints/bpt-1/logs" {
			t.Errorf("unexpected path: %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(BlueprintLogs{Logs: []BlueprintLogEntry{
			{Message: "step 1/9: FROM ubuntu:24.04"},
			{Message: "step 2/9: RUN apt-get update"},
		}})
	})

	logs, err := client.GetBlueprintLogs(context.Background(), "bpt-1")
	if err != nil {
		t.Fatalf("GetBlueprintLogs failed: %v", err)
	}
	want := "step 1/9: FROM ubuntu:24.04\nstep 2/9: RUN apt-get update"
	if logs != want {
		t.Fatalf("unexpected logs: %q", logs)
	}
}

func TestCreateDevbox(t *testing.T) {
	var gotReq CreateDevboxRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/devboxes" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		json.NewEncoder(w).Encode(Devbox{ID: "dbx-1", Status: DevboxProvisioning, BlueprintID: gotReq.BlueprintID})
	})

	db, err := client.CreateDevbox(context.Background(), CreateDevboxRequest{BlueprintID: "bpt-1", Name: "agentsh-sandbox-test"})
	if err != nil {
		t.Fatalf("CreateDevbox failed: %v", err)
	}
	if gotReq.BlueprintID != "bpt-1" {
		t.Fatalf("blueprint id not sent: %+v", gotReq)
	}
	if db.ID != "dbx-1" || db.BlueprintID != "bpt-1" {
		t.Fatalf("unexpected devbox: %+v", db)
	}
}

func TestExecuteCommand(t *testing.T) {
	var gotPath string
	var gotReq ExecuteRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request failed: %v", err)
		}
		json.NewEncoder(w).Encode(ExecutionResult{
			DevboxID:   "dbx-1",
			ExitStatus: 1,
			Stderr:     "agentsh: denied by policy",
		})
	})

	result, err := client.ExecuteCommand(context.Background(), "dbx-1", "sudo whoami 2>&1", 30*time.Second)
	if err != nil {
		t.Fatalf("ExecuteCommand failed: %v", err)
	}
	if gotPath != "/v1/devboxes/dbx-1/execute_sync" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotReq.Command != "sudo whoami 2>&1" {
		t.Fatalf("command not sent: %+v", gotReq)
	}
	if result.ExitStatus != 1 || result.Stderr != "agentsh: denied by policy" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecuteCommandTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	_, err := client.ExecuteCommand(context.Background(), "dbx-1", "sleep 60", 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestShutdownDevbox(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		json.NewEncoder(w).Encode(Devbox{ID: "dbx-1", Status: DevboxShutdown})
	})

	if err := client.ShutdownDevbox(context.Background(), "dbx-1"); err != nil {
		t.Fatalf("ShutdownDevbox failed: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/v1/devboxes/dbx-1/shutdown" {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
}

func TestAPIErrorEnvelopeDecoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"dockerfile is required"}}`))
	})

	_, err := client.CreateBlueprint(context.Background(), CreateBlueprintRequest{Name: "broken"})
	if err == nil {
		t.Fatal("expected API error")
	}
	apiErr, ok := IsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", apiErr.StatusCode)
	}
	if apiErr.Envelope.Error.Message != "dockerfile is required" {
		t.Fatalf("unexpected message: %q", apiErr.Envelope.Error.Message)
	}
	if !strings.Contains(apiErr.Error(), "invalid_request_error") {
		t.Fatalf("error text should carry the type: %q", apiErr.Error())
	}
}

func TestNonEnvelopeErrorBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	})

	_, err := client.GetDevbox(context.Background(), "dbx-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := IsAPIError(err); ok {
		t.Fatalf("plain body must not decode as APIError: %v", err)
	}
	if !strings.Contains(err.Error(), "api status 500") || !strings.Contains(err.Error(), "upstream exploded") {
		t.Fatalf("unexpected error text: %v", err)
	}
}

func TestParseAPIErrorEnvelope(t *testing.T) {
	if _, ok := ParseAPIErrorEnvelope([]byte("not json")); ok {
		t.Fatal("non-JSON body must not parse")
	}
	if _, ok := ParseAPIErrorEnvelope([]byte(`{"detail":"other shape"}`)); ok {
		t.Fatal("foreign JSON shape must not parse")
	}
	envelope, ok := ParseAPIErrorEnvelope([]byte(`{"error":{"type":"not_found","message":"no such devbox"}}`))
	if !ok {
		t.Fatal("valid envelope must parse")
	}
	if envelope.Error.Type != "not_found" {
		t.Fatalf("unexpected type: %q", envelope.Error.Type)
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{})
	if client.baseURL != "https://api.runloop.ai" {
		t.Fatalf("unexpected default base url: %q", client.baseURL)
	}

	client = NewClient(Config{BaseURL: "https://api.runloop.ai/"})
	if client.baseURL != "https://api.runloop.ai" {
		t.Fatalf("trailing slash not trimmed: %q", client.baseURL)
	}
}
