package repo

import (
	"context"
	"database/sql"

	"signoff/internal/domain"
)

const historyCols = `id,deliverable_id,workflow_id,step_id,action,actor_id,comments,ts`

func scanHistory(scan func(...any) error) (domain.HistoryEntry, error) {
	var h domain.HistoryEntry
	var workflowID, stepID, comments sql.NullString
	err := scan(&h.ID, &h.DeliverableID, &workflowID, &stepID, &h.Action, &h.ActorID, &comments, &h.TS)
	if err == sql.ErrNoRows {
		return h, ErrNotFound
	}
	if err != nil {
		return h, err
	}
	if workflowID.Valid {
		h.WorkflowID = workflowID.String
	}
	if stepID.Valid {
		h.StepID = &stepID.String
	}
	if comments.Valid {
		h.Comments = comments.String
	}
	return h, nil
}

// ListHistoryForWorkflow returns the audit trail for one workflow instance
// in append order.
func (r Repo) ListHistoryForWorkflow(ctx context.Context, workflowID string) ([]domain.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+historyCols+` FROM history WHERE workflow_id=? ORDER BY id ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHistory(rows)
}

// ListHistoryForDeliverable returns the full review lineage across every
// workflow instance of the deliverable.
func (r Repo) ListHistoryForDeliverable(ctx context.Context, deliverableID string) ([]domain.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+historyCols+` FROM history WHERE deliverable_id=? ORDER BY id ASC`, deliverableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHistory(rows)
}

func (r Repo) CountHistoryForWorkflow(ctx context.Context, workflowID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM history WHERE workflow_id=?`, workflowID).Scan(&n)
	return n, err
}

// HistoryAfter returns entries with IDs greater than the cursor in ascending
// order, for webhook delivery.
func (r Repo) HistoryAfter(ctx context.Context, limit int, cursor int64) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+historyCols+` FROM history WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectHistory(rows)
}

// LatestHistoryID returns the most recent ledger id.
func (r Repo) LatestHistoryID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM history`).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func collectHistory(rows *sql.Rows) ([]domain.HistoryEntry, error) {
	var res []domain.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}
