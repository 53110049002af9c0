package engine

import "errors"

// Validation failures surfaced to callers. None are retried automatically:
// retrying a lost race or a duplicate signature without caller intervention
// would either be a no-op or repeat the mistake.
var (
	// ErrEmptyWorkflow: a workflow was constructed with zero steps.
	ErrEmptyWorkflow = errors.New("workflow requires at least one step")

	// ErrStepNotActive: the target step is not the workflow's current step,
	// either already resolved, not yet reached, or a concurrent resolver won.
	ErrStepNotActive = errors.New("step is not the current step")

	// ErrSignatureRequired: approval attempted on a signature-required step
	// with no signatures recorded.
	ErrSignatureRequired = errors.New("step requires at least one signature before approval")

	// ErrDuplicateSignature: the signer already signed this step.
	ErrDuplicateSignature = errors.New("signer has already signed this step")

	// ErrNoRevisionPending: resubmission attempted while the active workflow
	// is not in revision_requested.
	ErrNoRevisionPending = errors.New("no revision pending for deliverable")

	// ErrWorkflowTerminal: action attempted against a workflow already in a
	// terminal state.
	ErrWorkflowTerminal = errors.New("workflow is already in a terminal state")
)
