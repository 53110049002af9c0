package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"signoff/internal/app"
	"signoff/internal/config"
	"signoff/internal/db"
	"signoff/internal/engine"
	"signoff/internal/migrate"
)

type testServer struct {
	BaseURL string
	Client  *http.Client
	Engine  engine.Engine
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("proj-1")
	eng := engine.New(conn, cfg)
	if err := app.CreateProject(context.Background(), eng.Repo, "proj-1", "Test project", cfg, "tester"); err != nil {
		t.Fatalf("create project: %v", err)
	}

	handler, err := New(Config{
		Engine: eng,
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	return testServer{
		BaseURL: fmt.Sprintf("http://%s/v0", ln.Addr()),
		Client:  &http.Client{Timeout: 5 * time.Second},
		Engine:  eng,
	}
}

func doJSON(t *testing.T, ts testServer, method, url string, body any, out any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Actor-Id", "tester")
	resp, err := ts.Client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("unmarshal %s %s (%d): %v\n%s", method, url, resp.StatusCode, err, data)
		}
	}
	return resp
}

func createAndSubmit(t *testing.T, ts testServer) (DeliverableResponse, SnapshotResponse) {
	t.Helper()
	var d DeliverableResponse
	resp := doJSON(t, ts, http.MethodPost, ts.BaseURL+"/projects/proj-1/deliverables", CreateDeliverableRequest{
		Title:       "Homepage design",
		ArtifactRef: "https://files.example/home-v1.fig",
	}, &d)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create deliverable status: %d", resp.StatusCode)
	}
	var snap SnapshotResponse
	resp = doJSON(t, ts, http.MethodPost, ts.BaseURL+"/projects/proj-1/deliverables/"+d.ID+"/submit", SubmitRequest{
		Steps: []SubmitStepRequest{
			{Name: "Internal review"},
			{Name: "Client sign-off", RequireSignature: true},
		},
	}, &snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit status: %d", resp.StatusCode)
	}
	return d, snap
}

type errorEnvelope struct {
	Error apiErrorBody `json:"error"`
}

func TestHealthUnauthenticated(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client.Get(ts.BaseURL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status: %d", resp.StatusCode)
	}
}

func TestMissingAuthRejected(t *testing.T) {
	ts := newTestServer(t)
	resp, err := ts.Client.Get(ts.BaseURL + "/projects")
	if err != nil {
		t.Fatalf("get projects: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", resp.StatusCode)
	}
	var body errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code != "unauthorized" {
		t.Fatalf("error code: %q", body.Error.Code)
	}
}

func TestDevLoginAndBearer(t *testing.T) {
	ts := newTestServer(t)
	var login DevLoginResponse
	resp := doJSON(t, ts, http.MethodPost, ts.BaseURL+"/auth/dev/login", DevLoginRequest{ActorID: "dev-1"}, &login)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dev login status: %d", resp.StatusCode)
	}
	if login.Token == "" {
		t.Fatalf("empty token")
	}
	req, _ := http.NewRequest(http.MethodGet, ts.BaseURL+"/projects", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	r2, err := ts.Client.Do(req)
	if err != nil {
		t.Fatalf("bearer request: %v", err)
	}
	r2.Body.Close()
	if r2.StatusCode != http.StatusOK {
		t.Fatalf("bearer request status: %d", r2.StatusCode)
	}
}

func TestApprovalFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	d, snap := createAndSubmit(t, ts)
	if snap.Deliverable.Status != "in_review" {
		t.Fatalf("deliverable status after submit: %q", snap.Deliverable.Status)
	}
	if snap.CurrentStepIndex != 1 {
		t.Fatalf("current step: %d", snap.CurrentStepIndex)
	}

	var out SnapshotResponse
	resp := doJSON(t, ts, http.MethodPost, ts.BaseURL+"/steps/"+snap.Steps[0].ID+"/approve", StepActionRequest{Comments: "lgtm"}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status: %d", resp.StatusCode)
	}
	if out.CurrentStepIndex != 2 {
		t.Fatalf("current step after approve: %d", out.CurrentStepIndex)
	}

	// signature gate surfaces as 422 signature_required
	var apiErr errorEnvelope
	resp = doJSON(t, ts, http.MethodPost, ts.BaseURL+"/steps/"+snap.Steps[1].ID+"/approve", StepActionRequest{}, &apiErr)
	if resp.StatusCode != http.StatusUnprocessableEntity || apiErr.Error.Code != "signature_required" {
		t.Fatalf("expected 422 signature_required, got %d %q", resp.StatusCode, apiErr.Error.Code)
	}

	resp = doJSON(t, ts, http.MethodPost, ts.BaseURL+"/steps/"+snap.Steps[1].ID+"/signatures", AddSignatureRequest{
		Payload: "Jane Client",
		Method:  "typed",
	}, &out)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("sign status: %d", resp.StatusCode)
	}
	resp = doJSON(t, ts, http.MethodPost, ts.BaseURL+"/steps/"+snap.Steps[1].ID+"/approve", StepActionRequest{}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("final approve status: %d", resp.StatusCode)
	}
	if out.Workflow.Status != "approved" {
		t.Fatalf("workflow status: %q", out.Workflow.Status)
	}

	// deliverable projection follows
	var got DeliverableResponse
	doJSON(t, ts, http.MethodGet, ts.BaseURL+"/projects/proj-1/deliverables/"+d.ID, nil, &got)
	if got.Status != "approved" {
		t.Fatalf("deliverable status: %q", got.Status)
	}
}

func TestStepNotActiveEnvelope(t *testing.T) {
	ts := newTestServer(t)
	_, snap := createAndSubmit(t, ts)

	var apiErr errorEnvelope
	resp := doJSON(t, ts, http.MethodPost, ts.BaseURL+"/steps/"+snap.Steps[1].ID+"/approve", StepActionRequest{}, &apiErr)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if apiErr.Error.Code != "step_not_active" {
		t.Fatalf("error code: %q", apiErr.Error.Code)
	}
}

func TestResubmitOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	d, snap := createAndSubmit(t, ts)

	var out SnapshotResponse
	resp := doJSON(t, ts, http.MethodPost, ts.BaseURL+"/steps/"+snap.Steps[0].ID+"/revise", StepActionRequest{Comments: "adjust spacing"}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revise status: %d", resp.StatusCode)
	}
	if out.Workflow.Status != "revision_requested" {
		t.Fatalf("workflow status: %q", out.Workflow.Status)
	}

	resp = doJSON(t, ts, http.MethodPost, ts.BaseURL+"/projects/proj-1/deliverables/"+d.ID+"/resubmit", ResubmitRequest{
		ArtifactRef: "https://files.example/home-v2.fig",
	}, &out)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resubmit status: %d", resp.StatusCode)
	}
	if out.Deliverable.Version != 2 {
		t.Fatalf("version: %d", out.Deliverable.Version)
	}
	if out.Workflow.ID == snap.Workflow.ID {
		t.Fatalf("resubmit reused workflow")
	}

	// both workflows are listed for the deliverable
	var workflows []WorkflowResponse
	doJSON(t, ts, http.MethodGet, ts.BaseURL+"/projects/proj-1/deliverables/"+d.ID+"/workflows", nil, &workflows)
	if len(workflows) != 2 {
		t.Fatalf("workflow count: %d", len(workflows))
	}

	// lineage across versions in deliverable history
	var entries []HistoryEntryResponse
	doJSON(t, ts, http.MethodGet, ts.BaseURL+"/projects/proj-1/deliverables/"+d.ID+"/history", nil, &entries)
	var sawResubmit bool
	for _, e := range entries {
		if e.Action == "version_resubmitted" {
			sawResubmit = true
		}
	}
	if !sawResubmit {
		t.Fatalf("missing version_resubmitted entry: %+v", entries)
	}
}

func TestDeliverableListPagination(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 5; i++ {
		var d DeliverableResponse
		resp := doJSON(t, ts, http.MethodPost, ts.BaseURL+"/projects/proj-1/deliverables", CreateDeliverableRequest{
			Title:       fmt.Sprintf("Deliverable %d", i),
			ArtifactRef: fmt.Sprintf("https://files.example/d-%d.fig", i),
		}, &d)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %d: %d", i, resp.StatusCode)
		}
	}
	var page paginatedDeliverables
	doJSON(t, ts, http.MethodGet, ts.BaseURL+"/projects/proj-1/deliverables?limit=2", nil, &page)
	if len(page.Items) != 2 {
		t.Fatalf("page size: %d", len(page.Items))
	}
	if page.NextCursor == "" {
		t.Fatalf("expected next cursor")
	}
	seen := map[string]bool{}
	for _, it := range page.Items {
		seen[it.ID] = true
	}
	doJSON(t, ts, http.MethodGet, ts.BaseURL+"/projects/proj-1/deliverables?limit=2&cursor="+page.NextCursor, nil, &page)
	for _, it := range page.Items {
		if seen[it.ID] {
			t.Fatalf("cursor returned duplicate item %s", it.ID)
		}
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	var created APIKeyResponse
	resp := doJSON(t, ts, http.MethodPost, ts.BaseURL+"/apikeys", CreateAPIKeyRequest{
		ActorID: "client-1",
		Name:    "portal",
	}, &created)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create key status: %d", resp.StatusCode)
	}
	if created.Key == "" {
		t.Fatalf("raw key not returned on creation")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.BaseURL+"/projects", nil)
	req.Header.Set("X-Api-Key", created.Key)
	r2, err := ts.Client.Do(req)
	if err != nil {
		t.Fatalf("api key request: %v", err)
	}
	r2.Body.Close()
	if r2.StatusCode != http.StatusOK {
		t.Fatalf("api key request status: %d", r2.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodDelete, ts.BaseURL+"/apikeys/"+created.ID, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete key status: %d", resp.StatusCode)
	}
	r3, err := ts.Client.Do(req)
	if err != nil {
		t.Fatalf("revoked key request: %v", err)
	}
	r3.Body.Close()
	if r3.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked key still accepted: %d", r3.StatusCode)
	}
}
