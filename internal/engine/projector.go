package engine

import "signoff/internal/domain"

// ProjectStatus maps the active workflow's status onto the deliverable's
// externally visible status. Pure and side-effect-free so it can be
// recomputed on every read: the deliverable row never stores a status that
// could drift from its workflow.
func ProjectStatus(workflow *domain.Workflow) string {
	if workflow == nil {
		return domain.DeliverableDraft
	}
	switch workflow.Status {
	case domain.WorkflowApproved:
		return domain.DeliverableApproved
	case domain.WorkflowRejected:
		return domain.DeliverableRejected
	case domain.WorkflowRevisionRequested:
		return domain.DeliverableRevisionRequested
	default:
		return domain.DeliverableInReview
	}
}
