package jobs

import (
	"context"

	"leaveflow/internal/platform/querier"
)

// PGRecorder writes job_runs rows through pgx.
type PGRecorder struct {
	DB querier.Querier
}

func (r PGRecorder) StartRun(ctx context.Context, tenantID, jobType string) (string, error) {
	var runID string
	err := r.DB.QueryRow(ctx, `
    INSERT INTO job_runs (tenant_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, tenantID, jobType, StatusRunning).Scan(&runID)
	return runID, err
}

func (r PGRecorder) FinishRun(ctx context.Context, runID, status string, details []byte) error {
	_, err := r.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, details, runID)
	return err
}
