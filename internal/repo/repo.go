package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"signoff/internal/config"
	"signoff/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,status,created_at) VALUES (?,?,?,?)`,
		p.ID, p.Name, p.Status, p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,status,created_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,created_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) SingleProject(ctx context.Context) (domain.Project, error) {
	projects, err := r.ListProjects(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	if len(projects) == 0 {
		return domain.Project{}, ErrNotFound
	}
	if len(projects) > 1 {
		return domain.Project{}, fmt.Errorf("multiple projects exist; specify --project")
	}
	return projects[0], nil
}

func (r Repo) UpsertProjectConfig(ctx context.Context, projectID string, cfg *config.Config) error {
	return upsertProjectConfig(ctx, r.DB, nil, projectID, cfg)
}

func (r Repo) UpsertProjectConfigTx(ctx context.Context, tx *sql.Tx, projectID string, cfg *config.Config) error {
	return upsertProjectConfig(ctx, nil, tx, projectID, cfg)
}

func upsertProjectConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, projectID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Project.ID = projectID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return db.ExecContext(ctx, query, args...)
	}
	_, err = exec(`INSERT INTO project_configs(project_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(project_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, projectID, string(payload), now, now)
	return err
}

func (r Repo) GetProjectConfig(ctx context.Context, projectID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM project_configs WHERE project_id=?`, projectID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Project.ID == "" {
		cfg.Project.ID = projectID
	}
	return &cfg, cfg.Validate()
}

// --- deliverables ---

func (r Repo) InsertDeliverable(ctx context.Context, tx *sql.Tx, d domain.Deliverable) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO deliverables(id,project_id,title,description,artifact_ref,version,active_workflow_id,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		d.ID, d.ProjectID, d.Title, nullable(d.Description), d.ArtifactRef, d.Version, nullableStringPtr(d.ActiveWorkflowID), d.CreatedAt, d.UpdatedAt)
	return err
}

func scanDeliverable(scan func(...any) error) (domain.Deliverable, error) {
	var d domain.Deliverable
	var description, activeWorkflow sql.NullString
	err := scan(&d.ID, &d.ProjectID, &d.Title, &description, &d.ArtifactRef, &d.Version, &activeWorkflow, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	if description.Valid {
		d.Description = description.String
	}
	if activeWorkflow.Valid {
		d.ActiveWorkflowID = &activeWorkflow.String
	}
	return d, nil
}

const deliverableCols = `id,project_id,title,description,artifact_ref,version,active_workflow_id,created_at,updated_at`

func (r Repo) GetDeliverable(ctx context.Context, id string) (domain.Deliverable, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+deliverableCols+` FROM deliverables WHERE id=?`, id)
	return scanDeliverable(row.Scan)
}

func (r Repo) GetDeliverableTx(ctx context.Context, tx *sql.Tx, id string) (domain.Deliverable, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+deliverableCols+` FROM deliverables WHERE id=?`, id)
	return scanDeliverable(row.Scan)
}

type DeliverableFilters struct {
	ProjectID       string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListDeliverables(ctx context.Context, f DeliverableFilters) ([]domain.Deliverable, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + deliverableCols + ` FROM deliverables ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Deliverable
	for rows.Next() {
		d, err := scanDeliverable(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// BumpDeliverableVersion increments the version counter and swaps the active
// workflow pointer in one statement.
func (r Repo) BumpDeliverableVersion(ctx context.Context, tx *sql.Tx, deliverableID, artifactRef, workflowID, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE deliverables SET version=version+1, artifact_ref=?, active_workflow_id=?, updated_at=? WHERE id=?`,
		artifactRef, workflowID, updatedAt, deliverableID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetActiveWorkflow(ctx context.Context, tx *sql.Tx, deliverableID, workflowID, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE deliverables SET active_workflow_id=?, updated_at=? WHERE id=?`,
		workflowID, updatedAt, deliverableID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- workflows ---

func (r Repo) InsertWorkflow(ctx context.Context, tx *sql.Tx, w domain.Workflow) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO workflows(id,deliverable_id,version,status,created_at,resolved_at) VALUES (?,?,?,?,?,?)`,
		w.ID, w.DeliverableID, w.Version, w.Status, w.CreatedAt, nullableStringPtr(w.ResolvedAt))
	return err
}

func scanWorkflow(scan func(...any) error) (domain.Workflow, error) {
	var w domain.Workflow
	var resolvedAt sql.NullString
	err := scan(&w.ID, &w.DeliverableID, &w.Version, &w.Status, &w.CreatedAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	if resolvedAt.Valid {
		w.ResolvedAt = &resolvedAt.String
	}
	return w, nil
}

const workflowCols = `id,deliverable_id,version,status,created_at,resolved_at`

func (r Repo) GetWorkflow(ctx context.Context, id string) (domain.Workflow, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+workflowCols+` FROM workflows WHERE id=?`, id)
	return scanWorkflow(row.Scan)
}

func (r Repo) GetWorkflowTx(ctx context.Context, tx *sql.Tx, id string) (domain.Workflow, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+workflowCols+` FROM workflows WHERE id=?`, id)
	return scanWorkflow(row.Scan)
}

func (r Repo) ListWorkflowsForDeliverable(ctx context.Context, deliverableID string) ([]domain.Workflow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+workflowCols+` FROM workflows WHERE deliverable_id=? ORDER BY version ASC`, deliverableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Workflow
	for rows.Next() {
		w, err := scanWorkflow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

func (r Repo) UpdateWorkflowStatus(ctx context.Context, tx *sql.Tx, id, status string, resolvedAt *string) error {
	_, err := tx.ExecContext(ctx, `UPDATE workflows SET status=?, resolved_at=? WHERE id=?`,
		status, nullableStringPtr(resolvedAt), id)
	return err
}

// --- steps ---

func (r Repo) InsertStep(ctx context.Context, tx *sql.Tx, s domain.Step) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO steps(id,workflow_id,seq,name,description,require_signature,status,comments,actor_id,resolved_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.WorkflowID, s.Seq, s.Name, nullable(s.Description), boolToInt(s.RequireSignature), s.Status,
		nullable(s.Comments), nullableStringPtr(s.ActorID), nullableStringPtr(s.ResolvedAt))
	return err
}

func scanStep(scan func(...any) error) (domain.Step, error) {
	var s domain.Step
	var description, comments, actorID, resolvedAt sql.NullString
	var requireSig int
	err := scan(&s.ID, &s.WorkflowID, &s.Seq, &s.Name, &description, &requireSig, &s.Status, &comments, &actorID, &resolvedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	s.RequireSignature = requireSig != 0
	if description.Valid {
		s.Description = description.String
	}
	if comments.Valid {
		s.Comments = comments.String
	}
	if actorID.Valid {
		s.ActorID = &actorID.String
	}
	if resolvedAt.Valid {
		s.ResolvedAt = &resolvedAt.String
	}
	return s, nil
}

const stepCols = `id,workflow_id,seq,name,description,require_signature,status,comments,actor_id,resolved_at`

func (r Repo) GetStep(ctx context.Context, id string) (domain.Step, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+stepCols+` FROM steps WHERE id=?`, id)
	return scanStep(row.Scan)
}

func (r Repo) GetStepTx(ctx context.Context, tx *sql.Tx, id string) (domain.Step, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+stepCols+` FROM steps WHERE id=?`, id)
	return scanStep(row.Scan)
}

func (r Repo) ListSteps(ctx context.Context, workflowID string) ([]domain.Step, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stepCols+` FROM steps WHERE workflow_id=? ORDER BY seq ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSteps(rows)
}

func (r Repo) ListStepsTx(ctx context.Context, tx *sql.Tx, workflowID string) ([]domain.Step, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+stepCols+` FROM steps WHERE workflow_id=? ORDER BY seq ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSteps(rows)
}

func collectSteps(rows *sql.Rows) ([]domain.Step, error) {
	var res []domain.Step
	for rows.Next() {
		s, err := scanStep(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// CurrentStepTx returns the lowest-seq step still pending, or ErrNotFound
// when every step is resolved.
func (r Repo) CurrentStepTx(ctx context.Context, tx *sql.Tx, workflowID string) (domain.Step, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+stepCols+` FROM steps WHERE workflow_id=? AND status='pending' ORDER BY seq ASC LIMIT 1`, workflowID)
	return scanStep(row.Scan)
}

// ResolveStepTx flips a step out of pending. The status predicate makes the
// check-then-act race-safe: a concurrent resolver loses with zero affected
// rows and must surface the step as no longer active.
func (r Repo) ResolveStepTx(ctx context.Context, tx *sql.Tx, stepID, status, comments, actorID, resolvedAt string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE steps SET status=?, comments=?, actor_id=?, resolved_at=? WHERE id=? AND status='pending'`,
		status, nullable(comments), actorID, resolvedAt, stepID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) CountPendingStepsTx(ctx context.Context, tx *sql.Tx, workflowID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM steps WHERE workflow_id=? AND status='pending'`, workflowID).Scan(&n)
	return n, err
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
