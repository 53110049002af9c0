package server

import (
	"signoff/internal/config"
	"signoff/internal/domain"
	"signoff/internal/engine"
)

// Request payloads

type CreateProjectRequest struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type CreateDeliverableRequest struct {
	ID          *string `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	ArtifactRef string  `json:"artifact_ref"`
}

type SubmitStepRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	RequireSignature bool   `json:"require_signature,omitempty"`
}

type SubmitRequest struct {
	Template string              `json:"template,omitempty"`
	Steps    []SubmitStepRequest `json:"steps,omitempty"`
}

type ResubmitRequest struct {
	ArtifactRef string `json:"artifact_ref"`
}

type StepActionRequest struct {
	Comments string `json:"comments,omitempty"`
}

type AddSignatureRequest struct {
	Payload string `json:"payload"`
	Method  string `json:"method" enum:"draw,typed,upload"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type ProjectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type DeliverableResponse struct {
	ID               string  `json:"id"`
	ProjectID        string  `json:"project_id"`
	Title            string  `json:"title"`
	Description      string  `json:"description,omitempty"`
	ArtifactRef      string  `json:"artifact_ref"`
	Version          int     `json:"version"`
	Status           string  `json:"status" enum:"draft,in_review,approved,rejected,revision_requested"`
	ActiveWorkflowID *string `json:"active_workflow_id,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

type WorkflowResponse struct {
	ID            string  `json:"id"`
	DeliverableID string  `json:"deliverable_id"`
	Version       int     `json:"version"`
	Status        string  `json:"status" enum:"pending,in_progress,approved,rejected,revision_requested"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	ResolvedAt    *string `json:"resolved_at,omitempty" format:"date-time"`
}

type StepResponse struct {
	ID               string  `json:"id"`
	WorkflowID       string  `json:"workflow_id"`
	Seq              int     `json:"seq"`
	Name             string  `json:"name"`
	Description      string  `json:"description,omitempty"`
	RequireSignature bool    `json:"require_signature"`
	Status           string  `json:"status" enum:"pending,approved,rejected,revision_requested"`
	Comments         string  `json:"comments,omitempty"`
	ActorID          *string `json:"actor_id,omitempty"`
	ResolvedAt       *string `json:"resolved_at,omitempty" format:"date-time"`
}

type SignatureResponse struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	StepID     string `json:"step_id"`
	SignerID   string `json:"signer_id"`
	Payload    string `json:"payload"`
	Method     string `json:"method" enum:"draw,typed,upload"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type HistoryEntryResponse struct {
	ID            int64   `json:"id"`
	DeliverableID string  `json:"deliverable_id"`
	WorkflowID    string  `json:"workflow_id,omitempty"`
	StepID        *string `json:"step_id,omitempty"`
	Action        string  `json:"action"`
	ActorID       string  `json:"actor_id"`
	Comments      string  `json:"comments,omitempty"`
	TS            string  `json:"ts" format:"date-time"`
}

// SnapshotResponse is the full client-facing view: the workflow plus its
// derived current step, steps, signatures and history in one read.
type SnapshotResponse struct {
	Workflow          WorkflowResponse       `json:"workflow"`
	Deliverable       DeliverableResponse    `json:"deliverable"`
	CurrentStepIndex  int                    `json:"current_step_index"`
	Steps             []StepResponse         `json:"steps"`
	Signatures        []SignatureResponse    `json:"signatures"`
	History           []HistoryEntryResponse `json:"history"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	// Key is only present on creation.
	Key string `json:"key,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type ProjectConfigResponse struct {
	Project struct {
		ID   string `json:"id"`
		Kind string `json:"kind"`
	} `json:"project"`
	Review struct {
		DefaultTemplate string                            `json:"default_template,omitempty"`
		Templates       map[string]ReviewTemplateResponse `json:"templates"`
	} `json:"review"`
}

type ReviewTemplateResponse struct {
	Steps []SubmitStepRequest `json:"steps"`
}

type paginatedDeliverables struct {
	Items      []DeliverableResponse `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// Conversion helpers

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse(p)
}

func deliverableResponse(d domain.Deliverable, status string) DeliverableResponse {
	return DeliverableResponse{
		ID:               d.ID,
		ProjectID:        d.ProjectID,
		Title:            d.Title,
		Description:      d.Description,
		ArtifactRef:      d.ArtifactRef,
		Version:          d.Version,
		Status:           status,
		ActiveWorkflowID: d.ActiveWorkflowID,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func workflowResponse(w domain.Workflow) WorkflowResponse {
	return WorkflowResponse(w)
}

func stepResponse(s domain.Step) StepResponse {
	return StepResponse(s)
}

func signatureResponse(s domain.Signature) SignatureResponse {
	return SignatureResponse(s)
}

func historyResponse(h domain.HistoryEntry) HistoryEntryResponse {
	return HistoryEntryResponse(h)
}

func snapshotResponse(s engine.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		Workflow:         workflowResponse(s.Workflow),
		Deliverable:      deliverableResponse(s.Deliverable, s.DeliverableStatus),
		CurrentStepIndex: s.CurrentStepIndex,
		Steps:            mapSteps(s.Steps),
		Signatures:       mapSignatures(s.Signatures),
		History:          mapHistory(s.History),
	}
}

func configResponse(cfg *config.Config) ProjectConfigResponse {
	var res ProjectConfigResponse
	res.Project.ID = cfg.Project.ID
	res.Project.Kind = cfg.Project.Kind
	res.Review.DefaultTemplate = cfg.Review.DefaultTemplate
	res.Review.Templates = map[string]ReviewTemplateResponse{}
	for name, tpl := range cfg.Review.Templates {
		steps := make([]SubmitStepRequest, 0, len(tpl.Steps))
		for _, s := range tpl.Steps {
			steps = append(steps, SubmitStepRequest{
				Name:             s.Name,
				Description:      s.Description,
				RequireSignature: s.RequireSignature,
			})
		}
		res.Review.Templates[name] = ReviewTemplateResponse{Steps: steps}
	}
	return res
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

func mapSteps(items []domain.Step) []StepResponse {
	res := make([]StepResponse, 0, len(items))
	for _, s := range items {
		res = append(res, stepResponse(s))
	}
	return res
}

func mapSignatures(items []domain.Signature) []SignatureResponse {
	res := make([]SignatureResponse, 0, len(items))
	for _, s := range items {
		res = append(res, signatureResponse(s))
	}
	return res
}

func mapHistory(items []domain.HistoryEntry) []HistoryEntryResponse {
	res := make([]HistoryEntryResponse, 0, len(items))
	for _, h := range items {
		res = append(res, historyResponse(h))
	}
	return res
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
