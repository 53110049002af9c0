package domain

// Deliverable statuses as projected for external readers.
const (
	DeliverableDraft             = "draft"
	DeliverableInReview          = "in_review"
	DeliverableApproved          = "approved"
	DeliverableRejected          = "rejected"
	DeliverableRevisionRequested = "revision_requested"
)

// Workflow statuses.
const (
	WorkflowPending           = "pending"
	WorkflowInProgress        = "in_progress"
	WorkflowApproved          = "approved"
	WorkflowRejected          = "rejected"
	WorkflowRevisionRequested = "revision_requested"
)

// Step statuses.
const (
	StepPending           = "pending"
	StepApproved          = "approved"
	StepRejected          = "rejected"
	StepRevisionRequested = "revision_requested"
)

// Signature capture methods.
const (
	SignatureDraw   = "draw"
	SignatureTyped  = "typed"
	SignatureUpload = "upload"
)

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Deliverable struct {
	ID               string  `json:"id"`
	ProjectID        string  `json:"project_id"`
	Title            string  `json:"title"`
	Description      string  `json:"description,omitempty"`
	ArtifactRef      string  `json:"artifact_ref"`
	Version          int     `json:"version"`
	ActiveWorkflowID *string `json:"active_workflow_id,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

type Workflow struct {
	ID            string  `json:"id"`
	DeliverableID string  `json:"deliverable_id"`
	Version       int     `json:"version"`
	Status        string  `json:"status" enum:"pending,in_progress,approved,rejected,revision_requested"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	ResolvedAt    *string `json:"resolved_at,omitempty" format:"date-time"`
}

// Step is an ordered gate within a workflow. Seq is 1-based and immutable
// once the workflow is created.
type Step struct {
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

type Signature struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	StepID     string `json:"step_id"`
	SignerID   string `json:"signer_id"`
	Payload    string `json:"payload"`
	Method     string `json:"method" enum:"draw,typed,upload"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// HistoryEntry is one record of the append-only audit ledger. ID is the
// tie-breaking sequence counter; StepID is nil for deliverable-level events.
type HistoryEntry struct {
	ID            int64   `json:"id"`
	DeliverableID string  `json:"deliverable_id"`
	WorkflowID    string  `json:"workflow_id,omitempty"`
	StepID        *string `json:"step_id,omitempty"`
	Action        string  `json:"action"`
	ActorID       string  `json:"actor_id"`
	Comments      string  `json:"comments,omitempty"`
	TS            string  `json:"ts" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// StepTemplate is the validated shape a workflow's steps are created from.
type StepTemplate struct {
	Seq              int    `json:"seq"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	RequireSignature bool   `json:"require_signature"`
}

// Terminal reports whether a workflow status admits no further actions.
func Terminal(workflowStatus string) bool {
	switch workflowStatus {
	case WorkflowApproved, WorkflowRejected, WorkflowRevisionRequested:
		return true
	}
	return false
}
