package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"signoff/internal/config"
	"signoff/internal/domain"
	"signoff/internal/history"
	"signoff/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	History history.Ledger
	Config  *config.Config
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		History: history.Ledger{DB: db},
		Config:  cfg,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Snapshot is the full client-facing view of one workflow instance. Every
// write action returns a fresh snapshot so callers never reconstruct state
// locally.
type Snapshot struct {
	Workflow          domain.Workflow
	Deliverable       domain.Deliverable
	DeliverableStatus string
	CurrentStepIndex  int
	Steps             []domain.Step
	Signatures        []domain.Signature
	History           []domain.HistoryEntry
}

// DeliverableCreateOptions are parameters for publishing a first artifact
// version.
type DeliverableCreateOptions struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	ArtifactRef string
	ActorID     string
}

func (e Engine) CreateDeliverable(ctx context.Context, opts DeliverableCreateOptions) (domain.Deliverable, error) {
	if opts.Title == "" {
		return domain.Deliverable{}, errors.New("title is required")
	}
	if opts.ProjectID == "" {
		return domain.Deliverable{}, errors.New("project is required")
	}
	if opts.ArtifactRef == "" {
		return domain.Deliverable{}, errors.New("artifact_ref is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Deliverable{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.ProjectID+"|"+opts.Title+"|"+now)).String()
	}
	d := domain.Deliverable{
		ID:          id,
		ProjectID:   opts.ProjectID,
		Title:       opts.Title,
		Description: opts.Description,
		ArtifactRef: opts.ArtifactRef,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Deliverable{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, opts.ActorID, ""); err != nil {
		return domain.Deliverable{}, err
	}
	if err := e.Repo.InsertDeliverable(ctx, tx, d); err != nil {
		return domain.Deliverable{}, fmt.Errorf("insert deliverable: %w", err)
	}
	if err := e.History.Append(ctx, tx, history.Entry{
		DeliverableID: d.ID,
		Action:        history.ActionDeliverableCreated,
		ActorID:       opts.ActorID,
	}); err != nil {
		return domain.Deliverable{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Deliverable{}, err
	}
	return d, nil
}

// SubmitOptions are parameters for attaching a review workflow to a
// deliverable. Either Template names a configured review template or Steps
// carries an explicit ordered list.
type SubmitOptions struct {
	DeliverableID string
	Template      string
	Steps         []domain.StepTemplate
	ActorID       string
}

func (e Engine) SubmitForReview(ctx context.Context, opts SubmitOptions) (Snapshot, error) {
	if e.Config == nil {
		return Snapshot{}, errors.New("config not loaded")
	}
	d, err := e.Repo.GetDeliverable(ctx, opts.DeliverableID)
	if err != nil {
		return Snapshot{}, err
	}
	if d.ActiveWorkflowID != nil {
		return Snapshot{}, fmt.Errorf("deliverable %s already has a workflow; resubmit after revision_requested", d.ID)
	}
	steps := opts.Steps
	if len(steps) == 0 && opts.Template == "" && e.Config.Review.DefaultTemplate == "" {
		return Snapshot{}, ErrEmptyWorkflow
	}
	if len(steps) == 0 {
		steps, err = e.Config.StepTemplates(opts.Template)
		if err != nil {
			return Snapshot{}, err
		}
	}
	if err := validateStepTemplates(steps); err != nil {
		return Snapshot{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	w := domain.Workflow{
		ID:            uuid.New().String(),
		DeliverableID: d.ID,
		Version:       d.Version,
		Status:        domain.WorkflowPending,
		CreatedAt:     now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, opts.ActorID, ""); err != nil {
		return Snapshot{}, err
	}
	if err := e.Repo.InsertWorkflow(ctx, tx, w); err != nil {
		return Snapshot{}, fmt.Errorf("insert workflow: %w", err)
	}
	if err := e.insertSteps(ctx, tx, w.ID, steps); err != nil {
		return Snapshot{}, err
	}
	if err := e.Repo.SetActiveWorkflow(ctx, tx, d.ID, w.ID, now); err != nil {
		return Snapshot{}, err
	}
	if err := e.History.Append(ctx, tx, history.Entry{
		DeliverableID: d.ID,
		WorkflowID:    w.ID,
		Action:        history.ActionWorkflowSubmitted,
		ActorID:       opts.ActorID,
	}); err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, err
	}
	return e.Snapshot(ctx, w.ID)
}

func validateStepTemplates(steps []domain.StepTemplate) error {
	if len(steps) == 0 {
		return ErrEmptyWorkflow
	}
	for i, s := range steps {
		if s.Name == "" {
			return fmt.Errorf("step %d has empty name", i+1)
		}
	}
	return nil
}

func (e Engine) insertSteps(ctx context.Context, tx *sql.Tx, workflowID string, steps []domain.StepTemplate) error {
	for i, tpl := range steps {
		s := domain.Step{
			ID:               uuid.New().String(),
			WorkflowID:       workflowID,
			Seq:              i + 1,
			Name:             tpl.Name,
			Description:      tpl.Description,
			RequireSignature: tpl.RequireSignature,
			Status:           domain.StepPending,
		}
		if err := e.Repo.InsertStep(ctx, tx, s); err != nil {
			return fmt.Errorf("insert step %d: %w", s.Seq, err)
		}
	}
	return nil
}

// ActionOptions carry a terminal transition request against one step.
type ActionOptions struct {
	StepID   string
	ActorID  string
	Comments string
}

func (e Engine) ApproveStep(ctx context.Context, opts ActionOptions) (Snapshot, error) {
	return e.resolveStep(ctx, opts, domain.StepApproved)
}

func (e Engine) RejectStep(ctx context.Context, opts ActionOptions) (Snapshot, error) {
	return e.resolveStep(ctx, opts, domain.StepRejected)
}

func (e Engine) RequestRevision(ctx context.Context, opts ActionOptions) (Snapshot, error) {
	return e.resolveStep(ctx, opts, domain.StepRevisionRequested)
}

// resolveStep applies one terminal transition. The read (is this the current
// step) and the write are one transaction, and the UPDATE is predicated on
// the step still being pending, so two racing resolvers cannot both win:
// the loser's conditional update affects zero rows and maps to
// ErrStepNotActive.
func (e Engine) resolveStep(ctx context.Context, opts ActionOptions, target string) (Snapshot, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()

	step, err := e.Repo.GetStepTx(ctx, tx, opts.StepID)
	if err != nil {
		return Snapshot{}, err
	}
	w, err := e.Repo.GetWorkflowTx(ctx, tx, step.WorkflowID)
	if err != nil {
		return Snapshot{}, err
	}
	if domain.Terminal(w.Status) {
		return Snapshot{}, ErrWorkflowTerminal
	}
	current, err := e.Repo.CurrentStepTx(ctx, tx, w.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Snapshot{}, ErrStepNotActive
		}
		return Snapshot{}, err
	}
	if current.ID != step.ID {
		return Snapshot{}, ErrStepNotActive
	}
	if target == domain.StepApproved && step.RequireSignature {
		n, err := e.Repo.CountSignaturesTx(ctx, tx, step.ID)
		if err != nil {
			return Snapshot{}, err
		}
		if n == 0 {
			return Snapshot{}, ErrSignatureRequired
		}
	}
	if err := e.Repo.EnsureActor(ctx, tx, opts.ActorID, ""); err != nil {
		return Snapshot{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	ok, err := e.Repo.ResolveStepTx(ctx, tx, step.ID, target, opts.Comments, opts.ActorID, now)
	if err != nil {
		return Snapshot{}, err
	}
	if !ok {
		return Snapshot{}, ErrStepNotActive
	}
	status, resolvedAt, err := e.nextWorkflowStatus(ctx, tx, w.ID, target, now)
	if err != nil {
		return Snapshot{}, err
	}
	if err := e.Repo.UpdateWorkflowStatus(ctx, tx, w.ID, status, resolvedAt); err != nil {
		return Snapshot{}, err
	}
	if err := e.History.Append(ctx, tx, history.Entry{
		DeliverableID: w.DeliverableID,
		WorkflowID:    w.ID,
		StepID:        step.ID,
		Action:        actionFor(target),
		ActorID:       opts.ActorID,
		Comments:      opts.Comments,
	}); err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, err
	}
	return e.Snapshot(ctx, w.ID)
}

func (e Engine) nextWorkflowStatus(ctx context.Context, tx *sql.Tx, workflowID, target, now string) (string, *string, error) {
	switch target {
	case domain.StepRejected:
		return domain.WorkflowRejected, &now, nil
	case domain.StepRevisionRequested:
		return domain.WorkflowRevisionRequested, &now, nil
	}
	pending, err := e.Repo.CountPendingStepsTx(ctx, tx, workflowID)
	if err != nil {
		return "", nil, err
	}
	if pending == 0 {
		return domain.WorkflowApproved, &now, nil
	}
	return domain.WorkflowInProgress, nil, nil
}

func actionFor(target string) string {
	switch target {
	case domain.StepApproved:
		return history.ActionStepApproved
	case domain.StepRejected:
		return history.ActionStepRejected
	default:
		return history.ActionRevisionRequested
	}
}

// SignatureOptions carry an add_signature request.
type SignatureOptions struct {
	StepID   string
	SignerID string
	Payload  string
	Method   string
}

// AddSignature records a signature against the current step. It never
// changes step or workflow status by itself.
func (e Engine) AddSignature(ctx context.Context, opts SignatureOptions) (Snapshot, error) {
	if opts.Payload == "" {
		return Snapshot{}, errors.New("signature payload is required")
	}
	switch opts.Method {
	case domain.SignatureDraw, domain.SignatureTyped, domain.SignatureUpload:
	default:
		return Snapshot{}, fmt.Errorf("invalid signature method %q", opts.Method)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()

	step, err := e.Repo.GetStepTx(ctx, tx, opts.StepID)
	if err != nil {
		return Snapshot{}, err
	}
	w, err := e.Repo.GetWorkflowTx(ctx, tx, step.WorkflowID)
	if err != nil {
		return Snapshot{}, err
	}
	if domain.Terminal(w.Status) {
		return Snapshot{}, ErrWorkflowTerminal
	}
	current, err := e.Repo.CurrentStepTx(ctx, tx, w.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Snapshot{}, ErrStepNotActive
		}
		return Snapshot{}, err
	}
	if current.ID != step.ID {
		return Snapshot{}, ErrStepNotActive
	}
	exists, err := e.Repo.HasSignatureTx(ctx, tx, step.ID, opts.SignerID)
	if err != nil {
		return Snapshot{}, err
	}
	if exists {
		return Snapshot{}, ErrDuplicateSignature
	}
	if err := e.Repo.EnsureActor(ctx, tx, opts.SignerID, repo.ActorContact); err != nil {
		return Snapshot{}, err
	}
	sig := domain.Signature{
		ID:         uuid.New().String(),
		WorkflowID: w.ID,
		StepID:     step.ID,
		SignerID:   opts.SignerID,
		Payload:    opts.Payload,
		Method:     opts.Method,
		CreatedAt:  e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertSignatureTx(ctx, tx, sig); err != nil {
		if repo.IsUniqueViolation(err) {
			return Snapshot{}, ErrDuplicateSignature
		}
		return Snapshot{}, err
	}
	if err := e.History.Append(ctx, tx, history.Entry{
		DeliverableID: w.DeliverableID,
		WorkflowID:    w.ID,
		StepID:        step.ID,
		Action:        history.ActionSignatureAdded,
		ActorID:       opts.SignerID,
	}); err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, err
	}
	return e.Snapshot(ctx, w.ID)
}

// ResubmitOptions carry a new artifact version into a fresh review cycle.
type ResubmitOptions struct {
	DeliverableID string
	ArtifactRef   string
	ActorID       string
}

// Resubmit bridges a terminated revision_requested workflow into a new
// workflow for the next artifact version. The old workflow, its steps,
// signatures and history stay permanently queryable.
func (e Engine) Resubmit(ctx context.Context, opts ResubmitOptions) (Snapshot, error) {
	if opts.ArtifactRef == "" {
		return Snapshot{}, errors.New("new artifact_ref is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, err
	}
	defer tx.Rollback()

	d, err := e.Repo.GetDeliverableTx(ctx, tx, opts.DeliverableID)
	if err != nil {
		return Snapshot{}, err
	}
	if d.ActiveWorkflowID == nil {
		return Snapshot{}, ErrNoRevisionPending
	}
	prev, err := e.Repo.GetWorkflowTx(ctx, tx, *d.ActiveWorkflowID)
	if err != nil {
		return Snapshot{}, err
	}
	if prev.Status != domain.WorkflowRevisionRequested {
		return Snapshot{}, ErrNoRevisionPending
	}
	prevSteps, err := e.Repo.ListStepsTx(ctx, tx, prev.ID)
	if err != nil {
		return Snapshot{}, err
	}
	templates := make([]domain.StepTemplate, 0, len(prevSteps))
	for _, s := range prevSteps {
		templates = append(templates, domain.StepTemplate{
			Seq:              s.Seq,
			Name:             s.Name,
			Description:      s.Description,
			RequireSignature: s.RequireSignature,
		})
	}
	now := e.now().UTC().Format(time.RFC3339)
	w := domain.Workflow{
		ID:            uuid.New().String(),
		DeliverableID: d.ID,
		Version:       d.Version + 1,
		Status:        domain.WorkflowPending,
		CreatedAt:     now,
	}
	if err := e.Repo.EnsureActor(ctx, tx, opts.ActorID, ""); err != nil {
		return Snapshot{}, err
	}
	if err := e.Repo.InsertWorkflow(ctx, tx, w); err != nil {
		return Snapshot{}, fmt.Errorf("insert workflow: %w", err)
	}
	if err := e.insertSteps(ctx, tx, w.ID, templates); err != nil {
		return Snapshot{}, err
	}
	if err := e.Repo.BumpDeliverableVersion(ctx, tx, d.ID, opts.ArtifactRef, w.ID, now); err != nil {
		return Snapshot{}, err
	}
	if err := e.History.Append(ctx, tx, history.Entry{
		DeliverableID: d.ID,
		WorkflowID:    w.ID,
		Action:        history.ActionVersionResubmitted,
		ActorID:       opts.ActorID,
		Comments:      fmt.Sprintf("v%d -> v%d", prev.Version, w.Version),
	}); err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return Snapshot{}, err
	}
	return e.Snapshot(ctx, w.ID)
}

// Snapshot assembles the idempotent full view of a workflow instance.
func (e Engine) Snapshot(ctx context.Context, workflowID string) (Snapshot, error) {
	w, err := e.Repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return Snapshot{}, err
	}
	d, err := e.Repo.GetDeliverable(ctx, w.DeliverableID)
	if err != nil {
		return Snapshot{}, err
	}
	steps, err := e.Repo.ListSteps(ctx, w.ID)
	if err != nil {
		return Snapshot{}, err
	}
	sigs, err := e.Repo.ListSignaturesForWorkflow(ctx, w.ID)
	if err != nil {
		return Snapshot{}, err
	}
	hist, err := e.Repo.ListHistoryForWorkflow(ctx, w.ID)
	if err != nil {
		return Snapshot{}, err
	}
	status, err := e.DeliverableStatus(ctx, d)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Workflow:          w,
		Deliverable:       d,
		DeliverableStatus: status,
		CurrentStepIndex:  CurrentIndex(steps),
		Steps:             steps,
		Signatures:        sigs,
		History:           hist,
	}, nil
}

// DeliverableStatus projects the externally visible status from the active
// workflow, or draft when no workflow has ever been created.
func (e Engine) DeliverableStatus(ctx context.Context, d domain.Deliverable) (string, error) {
	if d.ActiveWorkflowID == nil {
		return ProjectStatus(nil), nil
	}
	w, err := e.Repo.GetWorkflow(ctx, *d.ActiveWorkflowID)
	if err != nil {
		return "", err
	}
	return ProjectStatus(&w), nil
}
