package engine

import "signoff/internal/domain"

// CurrentStep returns the lowest-sequence-number step whose status is still
// pending. There is no stored "current" pointer to drift out of sync; this
// predicate is the single source of truth for which step is actionable.
func CurrentStep(steps []domain.Step) (domain.Step, bool) {
	var current domain.Step
	found := false
	for _, s := range steps {
		if s.Status != domain.StepPending {
			continue
		}
		if !found || s.Seq < current.Seq {
			current = s
			found = true
		}
	}
	return current, found
}

// CurrentIndex returns the 1-based sequence number of the current step, or 0
// when every step is resolved.
func CurrentIndex(steps []domain.Step) int {
	if s, ok := CurrentStep(steps); ok {
		return s.Seq
	}
	return 0
}
