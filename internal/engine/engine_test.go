package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"signoff/internal/app"
	"signoff/internal/config"
	"signoff/internal/db"
	"signoff/internal/domain"
	"signoff/internal/engine"
	"signoff/internal/history"
	"signoff/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
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
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := app.CreateProject(ctx, eng.Repo, "proj-1", "Test project", cfg, "tester"); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func createDeliverable(t *testing.T, env testEnv) domain.Deliverable {
	t.Helper()
	d, err := env.Engine.CreateDeliverable(env.Ctx, engine.DeliverableCreateOptions{
		ProjectID:   "proj-1",
		Title:       "Homepage design",
		ArtifactRef: "https://files.example/home-v1.fig",
		ActorID:     "tester",
	})
	if err != nil {
		t.Fatalf("create deliverable: %v", err)
	}
	return d
}

func submitThreeSteps(t *testing.T, env testEnv, deliverableID string) engine.Snapshot {
	t.Helper()
	snap, err := env.Engine.SubmitForReview(env.Ctx, engine.SubmitOptions{
		DeliverableID: deliverableID,
		Steps: []domain.StepTemplate{
			{Seq: 1, Name: "Internal review"},
			{Seq: 2, Name: "Client sign-off", RequireSignature: true},
			{Seq: 3, Name: "Final QA"},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return snap
}

func TestFullApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)

	status, err := env.Engine.DeliverableStatus(env.Ctx, d)
	if err != nil || status != domain.DeliverableDraft {
		t.Fatalf("expected draft before submission, got %q (%v)", status, err)
	}

	snap := submitThreeSteps(t, env, d.ID)
	if snap.Workflow.Status != domain.WorkflowPending {
		t.Fatalf("workflow status after submit: %q", snap.Workflow.Status)
	}
	if snap.DeliverableStatus != domain.DeliverableInReview {
		t.Fatalf("deliverable status after submit: %q", snap.DeliverableStatus)
	}
	if snap.CurrentStepIndex != 1 {
		t.Fatalf("current step after submit: %d", snap.CurrentStepIndex)
	}

	snap, err = env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: snap.Steps[0].ID, ActorID: "lead"})
	if err != nil {
		t.Fatalf("approve step 1: %v", err)
	}
	if snap.Workflow.Status != domain.WorkflowInProgress {
		t.Fatalf("workflow status after first approval: %q", snap.Workflow.Status)
	}
	if snap.CurrentStepIndex != 2 {
		t.Fatalf("current step after first approval: %d", snap.CurrentStepIndex)
	}

	snap, err = env.Engine.AddSignature(env.Ctx, engine.SignatureOptions{
		StepID:   snap.Steps[1].ID,
		SignerID: "client-1",
		Payload:  "data:image/png;base64,abc",
		Method:   domain.SignatureDraw,
	})
	if err != nil {
		t.Fatalf("sign step 2: %v", err)
	}
	snap, err = env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: snap.Steps[1].ID, ActorID: "client-1"})
	if err != nil {
		t.Fatalf("approve step 2: %v", err)
	}
	if snap.CurrentStepIndex != 3 {
		t.Fatalf("current step after second approval: %d", snap.CurrentStepIndex)
	}

	snap, err = env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: snap.Steps[2].ID, ActorID: "qa"})
	if err != nil {
		t.Fatalf("approve step 3: %v", err)
	}
	if snap.Workflow.Status != domain.WorkflowApproved {
		t.Fatalf("workflow status after final approval: %q", snap.Workflow.Status)
	}
	if snap.DeliverableStatus != domain.DeliverableApproved {
		t.Fatalf("deliverable status after final approval: %q", snap.DeliverableStatus)
	}
	if snap.CurrentStepIndex != 0 {
		t.Fatalf("expected no current step, got %d", snap.CurrentStepIndex)
	}
	if snap.Workflow.ResolvedAt == nil {
		t.Fatalf("expected resolved_at on approved workflow")
	}

	// deliverable.created + workflow.submitted + signature.added + 3 approvals
	// minus deliverable.created which carries no workflow id
	wantActions := []string{
		history.ActionWorkflowSubmitted,
		history.ActionStepApproved,
		history.ActionSignatureAdded,
		history.ActionStepApproved,
		history.ActionStepApproved,
	}
	if len(snap.History) != len(wantActions) {
		t.Fatalf("history length %d, want %d", len(snap.History), len(wantActions))
	}
	for i, want := range wantActions {
		if snap.History[i].Action != want {
			t.Fatalf("history[%d] = %q, want %q", i, snap.History[i].Action, want)
		}
	}
}

func TestSubmitRequiresSteps(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)
	env.Engine.Config.Review.DefaultTemplate = ""
	_, err := env.Engine.SubmitForReview(env.Ctx, engine.SubmitOptions{
		DeliverableID: d.ID,
		ActorID:       "tester",
	})
	if !errors.Is(err, engine.ErrEmptyWorkflow) {
		t.Fatalf("expected ErrEmptyWorkflow, got %v", err)
	}
	// failed submission leaves no workflow and no history beyond creation
	entries, err := env.Engine.Repo.ListHistoryForDeliverable(env.Ctx, d.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != history.ActionDeliverableCreated {
		t.Fatalf("unexpected history after failed submit: %+v", entries)
	}
}

func TestSubmitFromTemplate(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)
	snap, err := env.Engine.SubmitForReview(env.Ctx, engine.SubmitOptions{
		DeliverableID: d.ID,
		Template:      "full",
		ActorID:       "tester",
	})
	if err != nil {
		t.Fatalf("submit from template: %v", err)
	}
	if len(snap.Steps) != 3 {
		t.Fatalf("expected 3 steps from full template, got %d", len(snap.Steps))
	}
	if !snap.Steps[1].RequireSignature {
		t.Fatalf("expected client sign-off step to require signature")
	}
}

func TestSubmitTwiceRejected(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)
	submitThreeSteps(t, env, d.ID)
	_, err := env.Engine.SubmitForReview(env.Ctx, engine.SubmitOptions{
		DeliverableID: d.ID,
		Template:      "standard",
		ActorID:       "tester",
	})
	if err == nil {
		t.Fatalf("expected second submit to fail")
	}
}

func TestOutOfOrderStepRejected(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)
	snap := submitThreeSteps(t, env, d.ID)

	_, err := env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: snap.Steps[2].ID, ActorID: "qa"})
	if !errors.Is(err, engine.ErrStepNotActive) {
		t.Fatalf("expected ErrStepNotActive for skip-ahead, got %v", err)
	}

	// resolving the same step twice also fails
	snap, err = env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: snap.Steps[0].ID, ActorID: "lead"})
	if err != nil {
		t.Fatalf("approve step 1: %v", err)
	}
	_, err = env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: snap.Steps[0].ID, ActorID: "lead"})
	if !errors.Is(err, engine.ErrStepNotActive) {
		t.Fatalf("expected ErrStepNotActive on re-approve, got %v", err)
	}
}

func TestSignatureGate(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)
	snap := submitThreeSteps(t, env, d.ID)

	snap, err := env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: snap.Steps[0].ID, ActorID: "lead"})
	if err != nil {
		t.Fatalf("approve step 1: %v", err)
	}
	signStep := snap.Steps[1]

	_, err = env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: signStep.ID, ActorID: "client-1"})
	if !errors.Is(err, engine.ErrSignatureRequired) {
		t.Fatalf("expected ErrSignatureRequired, got %v", err)
	}
	// rejection does not need a signature
	// (checked on a separate deliverable so this workflow stays usable)

	snap, err = env.Engine.AddSignature(env.Ctx, engine.SignatureOptions{
		StepID:   signStep.ID,
		SignerID: "client-1",
		Payload:  "Jane Client",
		Method:   domain.SignatureTyped,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(snap.Signatures) != 1 {
		t.Fatalf("expected 1 signature, got %d", len(snap.Signatures))
	}
	// signing alone does not advance the step
	if snap.Steps[1].Status != domain.StepPending {
		t.Fatalf("signature advanced step to %q", snap.Steps[1].Status)
	}
	if _, err := env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: signStep.ID, ActorID: "client-1"}); err != nil {
		t.Fatalf("approve signed step: %v", err)
	}
}

func TestRejectWithoutSignatureAllowed(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)
	snap, err := env.Engine.SubmitForReview(env.Ctx, engine.SubmitOptions{
		DeliverableID: d.ID,
		Steps:         []domain.StepTemplate{{Seq: 1, Name: "Client sign-off", RequireSignature: true}},
		ActorID:       "tester",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	snap, err = env.Engine.RejectStep(env.Ctx, engine.ActionOptions{StepID: snap.Steps[0].ID, ActorID: "client-1", Comments: "wrong direction"})
	if err != nil {
		t.Fatalf("reject unsigned step: %v", err)
	}
	if snap.Workflow.Status != domain.WorkflowRejected {
		t.Fatalf("workflow status after reject: %q", snap.Workflow.Status)
	}
}

func TestDuplicateSignature(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)
	snap, err := env.Engine.SubmitForReview(env.Ctx, engine.SubmitOptions{
		DeliverableID: d.ID,
		Steps:         []domain.StepTemplate{{Seq: 1, Name: "Client sign-off", RequireSignature: true}},
		ActorID:       "tester",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	stepID := snap.Steps[0].ID
	if _, err := env.Engine.AddSignature(env.Ctx, engine.SignatureOptions{
		StepID: stepID, SignerID: "client-1", Payload: "x", Method: domain.SignatureTyped,
	}); err != nil {
		t.Fatalf("first signature: %v", err)
	}
	_, err = env.Engine.AddSignature(env.Ctx, engine.SignatureOptions{
		StepID: stepID, SignerID: "client-1", Payload: "x", Method: domain.SignatureTyped,
	})
	if !errors.Is(err, engine.ErrDuplicateSignature) {
		t.Fatalf("expected ErrDuplicateSignature, got %v", err)
	}
	// a second signer is fine
	snap, err = env.Engine.AddSignature(env.Ctx, engine.SignatureOptions{
		StepID: stepID, SignerID: "client-2", Payload: "y", Method: domain.SignatureUpload,
	})
	if err != nil {
		t.Fatalf("second signer: %v", err)
	}
	if len(snap.Signatures) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(snap.Signatures))
	}
}

func TestRejectionIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)
	snap := submitThreeSteps(t, env, d.ID)

	snap, err := env.Engine.RejectStep(env.Ctx, engine.ActionOptions{StepID: snap.Steps[0].ID, ActorID: "lead", Comments: "not good"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if snap.Workflow.Status != domain.WorkflowRejected {
		t.Fatalf("workflow status: %q", snap.Workflow.Status)
	}
	if snap.DeliverableStatus != domain.DeliverableRejected {
		t.Fatalf("deliverable status: %q", snap.DeliverableStatus)
	}
	// later steps are frozen pending, untouchable
	if snap.Steps[1].Status != domain.StepPending {
		t.Fatalf("later step mutated: %q", snap.Steps[1].Status)
	}
	_, err = env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: snap.Steps[1].ID, ActorID: "client-1"})
	if !errors.Is(err, engine.ErrWorkflowTerminal) {
		t.Fatalf("expected ErrWorkflowTerminal, got %v", err)
	}
	_, err = env.Engine.AddSignature(env.Ctx, engine.SignatureOptions{
		StepID: snap.Steps[1].ID, SignerID: "client-1", Payload: "x", Method: domain.SignatureTyped,
	})
	if !errors.Is(err, engine.ErrWorkflowTerminal) {
		t.Fatalf("expected ErrWorkflowTerminal on signature, got %v", err)
	}
	// rejection has no comeback path
	_, err = env.Engine.Resubmit(env.Ctx, engine.ResubmitOptions{
		DeliverableID: d.ID, ArtifactRef: "https://files.example/home-v2.fig", ActorID: "tester",
	})
	if !errors.Is(err, engine.ErrNoRevisionPending) {
		t.Fatalf("expected ErrNoRevisionPending after rejection, got %v", err)
	}
}

func TestRevisionAndResubmit(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)
	first := submitThreeSteps(t, env, d.ID)

	snap, err := env.Engine.RequestRevision(env.Ctx, engine.ActionOptions{StepID: first.Steps[0].ID, ActorID: "lead", Comments: "tweak header"})
	if err != nil {
		t.Fatalf("request revision: %v", err)
	}
	if snap.Workflow.Status != domain.WorkflowRevisionRequested {
		t.Fatalf("workflow status: %q", snap.Workflow.Status)
	}
	if snap.DeliverableStatus != domain.DeliverableRevisionRequested {
		t.Fatalf("deliverable status: %q", snap.DeliverableStatus)
	}

	_, err = env.Engine.Resubmit(env.Ctx, engine.ResubmitOptions{DeliverableID: d.ID, ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected resubmit without artifact_ref to fail")
	}

	snap2, err := env.Engine.Resubmit(env.Ctx, engine.ResubmitOptions{
		DeliverableID: d.ID, ArtifactRef: "https://files.example/home-v2.fig", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if snap2.Deliverable.Version != 2 {
		t.Fatalf("version after resubmit: %d", snap2.Deliverable.Version)
	}
	if snap2.Deliverable.ArtifactRef != "https://files.example/home-v2.fig" {
		t.Fatalf("artifact ref not updated: %s", snap2.Deliverable.ArtifactRef)
	}
	if snap2.Workflow.ID == first.Workflow.ID {
		t.Fatalf("resubmit reused workflow")
	}
	if len(snap2.Steps) != len(first.Steps) {
		t.Fatalf("step count changed: %d vs %d", len(snap2.Steps), len(first.Steps))
	}
	for i, s := range snap2.Steps {
		if s.Status != domain.StepPending {
			t.Fatalf("cloned step %d not pending: %q", i, s.Status)
		}
		if s.Name != first.Steps[i].Name || s.RequireSignature != first.Steps[i].RequireSignature {
			t.Fatalf("cloned step %d differs from original", i)
		}
	}

	// old workflow stays queryable and terminal
	old, err := env.Engine.Snapshot(env.Ctx, first.Workflow.ID)
	if err != nil {
		t.Fatalf("old snapshot: %v", err)
	}
	if old.Workflow.Status != domain.WorkflowRevisionRequested {
		t.Fatalf("old workflow mutated: %q", old.Workflow.Status)
	}

	// deliverable history spans both versions
	entries, err := env.Engine.Repo.ListHistoryForDeliverable(env.Ctx, d.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var sawRevision, sawResubmit bool
	for i := 1; i < len(entries); i++ {
		if entries[i].ID <= entries[i-1].ID {
			t.Fatalf("history out of order at %d", i)
		}
	}
	for _, e := range entries {
		switch e.Action {
		case history.ActionRevisionRequested:
			sawRevision = true
		case history.ActionVersionResubmitted:
			sawResubmit = true
		}
	}
	if !sawRevision || !sawResubmit {
		t.Fatalf("lineage missing revision/resubmit actions: %+v", entries)
	}

	// v2 can go all the way to approved
	_, err = env.Engine.Resubmit(env.Ctx, engine.ResubmitOptions{
		DeliverableID: d.ID, ArtifactRef: "https://files.example/home-v3.fig", ActorID: "tester",
	})
	if !errors.Is(err, engine.ErrNoRevisionPending) {
		t.Fatalf("expected ErrNoRevisionPending while v2 in review, got %v", err)
	}
}

func TestFailedActionsLeaveNoHistory(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)
	snap := submitThreeSteps(t, env, d.ID)

	before, err := env.Engine.Repo.CountHistoryForWorkflow(env.Ctx, snap.Workflow.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	_, _ = env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: snap.Steps[2].ID, ActorID: "qa"})
	_, _ = env.Engine.AddSignature(env.Ctx, engine.SignatureOptions{
		StepID: snap.Steps[2].ID, SignerID: "client-1", Payload: "x", Method: domain.SignatureTyped,
	})
	after, err := env.Engine.Repo.CountHistoryForWorkflow(env.Ctx, snap.Workflow.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if after != before {
		t.Fatalf("failed actions appended history: %d -> %d", before, after)
	}
}

func TestConcurrentApprovalSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	d := createDeliverable(t, env)
	snap := submitThreeSteps(t, env, d.ID)
	stepID := snap.Steps[0].ID

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := env.Engine.ApproveStep(env.Ctx, engine.ActionOptions{StepID: stepID, ActorID: "racer"})
			errs <- err
		}()
	}
	var wins, losses int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			wins++
		case errors.Is(err, engine.ErrStepNotActive):
			losses++
		default:
			t.Fatalf("unexpected race error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner, got %d wins / %d losses", wins, losses)
	}
	final, err := env.Engine.Snapshot(env.Ctx, snap.Workflow.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if final.Steps[0].Status != domain.StepApproved {
		t.Fatalf("step status after race: %q", final.Steps[0].Status)
	}
	n, err := env.Engine.Repo.CountHistoryForWorkflow(env.Ctx, snap.Workflow.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	// submit + exactly one approval
	if n != 2 {
		t.Fatalf("history entries after race: %d", n)
	}
}
