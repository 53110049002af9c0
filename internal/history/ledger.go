package history

import (
	"context"
	"database/sql"
	"time"
)

// Action kinds recorded in the ledger.
const (
	ActionDeliverableCreated = "deliverable.created"
	ActionWorkflowSubmitted  = "workflow.submitted"
	ActionStepApproved       = "step.approved"
	ActionStepRejected       = "step.rejected"
	ActionRevisionRequested  = "step.revision_requested"
	ActionSignatureAdded     = "signature.added"
	ActionVersionResubmitted = "version_resubmitted"
)

// Ledger appends audit records inside the caller's transaction. Rows are
// never updated or deleted; the autoincrement id is the authoritative
// tie-breaker for display ordering.
type Ledger struct {
	DB  *sql.DB
	Now func() time.Time
}

// Entry describes one record to append. StepID may be empty for
// deliverable-level events.
type Entry struct {
	DeliverableID string
	WorkflowID    string
	StepID        string
	Action        string
	ActorID       string
	Comments      string
}

func (l Ledger) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	now := l.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO history(deliverable_id,workflow_id,step_id,action,actor_id,comments,ts) VALUES (?,?,?,?,?,?,?)`,
		e.DeliverableID, nullable(e.WorkflowID), nullable(e.StepID), e.Action, e.ActorID, nullable(e.Comments), ts)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
