package repo

import (
	"context"
	"database/sql"
	"strings"

	"signoff/internal/domain"
)

const signatureCols = `id,workflow_id,step_id,signer_id,payload,method,created_at`

// InsertSignatureTx records a signature. The (step_id, signer_id) unique
// index is the duplicate guard; callers translate the conflict error.
func (r Repo) InsertSignatureTx(ctx context.Context, tx *sql.Tx, s domain.Signature) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO signatures(id,workflow_id,step_id,signer_id,payload,method,created_at) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.WorkflowID, s.StepID, s.SignerID, s.Payload, s.Method, s.CreatedAt)
	return err
}

// IsUniqueViolation reports whether err is the SQLite unique-constraint error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r Repo) HasSignatureTx(ctx context.Context, tx *sql.Tx, stepID, signerID string) (bool, error) {
	row := tx.QueryRowContext(ctx, `SELECT 1 FROM signatures WHERE step_id=? AND signer_id=? LIMIT 1`, stepID, signerID)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) CountSignaturesTx(ctx context.Context, tx *sql.Tx, stepID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT count(*) FROM signatures WHERE step_id=?`, stepID).Scan(&n)
	return n, err
}

func (r Repo) ListSignaturesForStep(ctx context.Context, stepID string) ([]domain.Signature, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+signatureCols+` FROM signatures WHERE step_id=? ORDER BY created_at ASC, id ASC`, stepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSignatures(rows)
}

func (r Repo) ListSignaturesForWorkflow(ctx context.Context, workflowID string) ([]domain.Signature, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+signatureCols+` FROM signatures WHERE workflow_id=? ORDER BY created_at ASC, id ASC`, workflowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSignatures(rows)
}

func collectSignatures(rows *sql.Rows) ([]domain.Signature, error) {
	var res []domain.Signature
	for rows.Next() {
		var s domain.Signature
		if err := rows.Scan(&s.ID, &s.WorkflowID, &s.StepID, &s.SignerID, &s.Payload, &s.Method, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
