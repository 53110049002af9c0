package signoffsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Signoff HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Deliverable is the API deliverable model.
type Deliverable struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ArtifactRef string `json:"artifact_ref"`
	Version     int    `json:"version"`
	Status      string `json:"status"`
}

// Workflow is the API workflow model.
type Workflow struct {
	ID            string  `json:"id"`
	DeliverableID string  `json:"deliverable_id"`
	Version       int     `json:"version"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	ResolvedAt    *string `json:"resolved_at,omitempty"`
}

// Step is one ordered approval gate.
type Step struct {
	ID               string `json:"id"`
	WorkflowID       string `json:"workflow_id"`
	Seq              int    `json:"seq"`
	Name             string `json:"name"`
	RequireSignature bool   `json:"require_signature"`
	Status           string `json:"status"`
	Comments         string `json:"comments,omitempty"`
}

// Signature is a captured e-signature on a step.
type Signature struct {
	ID       string `json:"id"`
	StepID   string `json:"step_id"`
	SignerID string `json:"signer_id"`
	Method   string `json:"method"`
}

// HistoryEntry is one audit ledger record.
type HistoryEntry struct {
	ID            int64   `json:"id"`
	DeliverableID string  `json:"deliverable_id"`
	WorkflowID    string  `json:"workflow_id,omitempty"`
	StepID        *string `json:"step_id,omitempty"`
	Action        string  `json:"action"`
	ActorID       string  `json:"actor_id"`
	Comments      string  `json:"comments,omitempty"`
	TS            string  `json:"ts"`
}

// Snapshot is the full workflow view every write returns.
type Snapshot struct {
	Workflow         Workflow       `json:"workflow"`
	Deliverable      Deliverable    `json:"deliverable"`
	CurrentStepIndex int            `json:"current_step_index"`
	Steps            []Step         `json:"steps"`
	Signatures       []Signature    `json:"signatures"`
	History          []HistoryEntry `json:"history"`
}

// SubmitStep is one explicit step in a submission.
type SubmitStep struct {
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	RequireSignature bool   `json:"require_signature,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateDeliverable publishes version 1 of a new deliverable.
func (c *Client) CreateDeliverable(ctx context.Context, title, artifactRef string) (Deliverable, error) {
	body := map[string]any{
		"title":        title,
		"artifact_ref": artifactRef,
	}
	var resp Deliverable
	err := c.do(ctx, http.MethodPost, c.projectPath("deliverables"), body, &resp)
	return resp, err
}

// GetDeliverable fetches a deliverable with its projected status.
func (c *Client) GetDeliverable(ctx context.Context, id string) (Deliverable, error) {
	var resp Deliverable
	endpoint := c.projectPath(fmt.Sprintf("deliverables/%s", url.PathEscape(id)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Submit attaches a review workflow built from a named template. Pass steps
// to override the template with an explicit ordered list.
func (c *Client) Submit(ctx context.Context, deliverableID, template string, steps []SubmitStep) (Snapshot, error) {
	body := map[string]any{}
	if template != "" {
		body["template"] = template
	}
	if len(steps) > 0 {
		body["steps"] = steps
	}
	var resp Snapshot
	endpoint := c.projectPath(fmt.Sprintf("deliverables/%s/submit", url.PathEscape(deliverableID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Resubmit opens a new review cycle for a revision-requested deliverable.
func (c *Client) Resubmit(ctx context.Context, deliverableID, artifactRef string) (Snapshot, error) {
	body := map[string]any{"artifact_ref": artifactRef}
	var resp Snapshot
	endpoint := c.projectPath(fmt.Sprintf("deliverables/%s/resubmit", url.PathEscape(deliverableID)))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ApproveStep approves the current step.
func (c *Client) ApproveStep(ctx context.Context, stepID, comments string) (Snapshot, error) {
	return c.stepAction(ctx, stepID, "approve", comments)
}

// RejectStep rejects the current step and ends the workflow.
func (c *Client) RejectStep(ctx context.Context, stepID, comments string) (Snapshot, error) {
	return c.stepAction(ctx, stepID, "reject", comments)
}

// RequestRevision sends the deliverable back for a new version.
func (c *Client) RequestRevision(ctx context.Context, stepID, comments string) (Snapshot, error) {
	return c.stepAction(ctx, stepID, "revise", comments)
}

func (c *Client) stepAction(ctx context.Context, stepID, verb, comments string) (Snapshot, error) {
	body := map[string]any{}
	if comments != "" {
		body["comments"] = comments
	}
	var resp Snapshot
	endpoint := fmt.Sprintf("v0/steps/%s/%s", url.PathEscape(stepID), verb)
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// AddSignature records an e-signature against the current step.
func (c *Client) AddSignature(ctx context.Context, stepID, payload, method string) (Snapshot, error) {
	body := map[string]any{
		"payload": payload,
		"method":  method,
	}
	var resp Snapshot
	endpoint := fmt.Sprintf("v0/steps/%s/signatures", url.PathEscape(stepID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// WorkflowSnapshot fetches the full state of one workflow.
func (c *Client) WorkflowSnapshot(ctx context.Context, workflowID string) (Snapshot, error) {
	var resp Snapshot
	endpoint := fmt.Sprintf("v0/workflows/%s", url.PathEscape(workflowID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// WorkflowHistory returns the audit trail for one workflow.
func (c *Client) WorkflowHistory(ctx context.Context, workflowID string) ([]HistoryEntry, error) {
	var resp []HistoryEntry
	endpoint := fmt.Sprintf("v0/workflows/%s/history", url.PathEscape(workflowID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// DeliverableHistory returns the full lineage across every version.
func (c *Client) DeliverableHistory(ctx context.Context, deliverableID string) ([]HistoryEntry, error) {
	var resp []HistoryEntry
	endpoint := c.projectPath(fmt.Sprintf("deliverables/%s/history", url.PathEscape(deliverableID)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
