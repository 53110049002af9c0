package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"signoff/internal/domain"
	"signoff/internal/engine"
)

func step(seq int, status string) domain.Step {
	return domain.Step{ID: "s", Seq: seq, Status: status}
}

func TestCurrentStep(t *testing.T) {
	_, ok := engine.CurrentStep(nil)
	assert.False(t, ok)

	steps := []domain.Step{
		step(1, domain.StepApproved),
		step(2, domain.StepPending),
		step(3, domain.StepPending),
	}
	cur, ok := engine.CurrentStep(steps)
	assert.True(t, ok)
	assert.Equal(t, 2, cur.Seq)

	// order in the slice does not matter, only seq does
	shuffled := []domain.Step{steps[2], steps[0], steps[1]}
	cur, ok = engine.CurrentStep(shuffled)
	assert.True(t, ok)
	assert.Equal(t, 2, cur.Seq)

	resolved := []domain.Step{
		step(1, domain.StepApproved),
		step(2, domain.StepRejected),
	}
	_, ok = engine.CurrentStep(resolved)
	assert.False(t, ok)
}

func TestCurrentIndex(t *testing.T) {
	assert.Equal(t, 0, engine.CurrentIndex(nil))
	assert.Equal(t, 1, engine.CurrentIndex([]domain.Step{step(1, domain.StepPending)}))
	assert.Equal(t, 3, engine.CurrentIndex([]domain.Step{
		step(1, domain.StepApproved),
		step(2, domain.StepApproved),
		step(3, domain.StepPending),
	}))
	assert.Equal(t, 0, engine.CurrentIndex([]domain.Step{step(1, domain.StepApproved)}))
}

func TestProjectStatus(t *testing.T) {
	assert.Equal(t, domain.DeliverableDraft, engine.ProjectStatus(nil))

	cases := map[string]string{
		domain.WorkflowPending:           domain.DeliverableInReview,
		domain.WorkflowInProgress:        domain.DeliverableInReview,
		domain.WorkflowApproved:          domain.DeliverableApproved,
		domain.WorkflowRejected:          domain.DeliverableRejected,
		domain.WorkflowRevisionRequested: domain.DeliverableRevisionRequested,
	}
	for wf, want := range cases {
		assert.Equal(t, want, engine.ProjectStatus(&domain.Workflow{Status: wf}), wf)
	}
}
