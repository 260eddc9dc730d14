package sqlite

import (
	"context"
	"database/sql"

	"leaveflow/internal/platform/jobs"
)

// JobRecorder implements jobs.Recorder.
type JobRecorder struct {
	db *sql.DB
}

func NewJobRecorder(db *sql.DB) *JobRecorder {
	return &JobRecorder{db: db}
}

func (r *JobRecorder) StartRun(ctx context.Context, tenantID, jobType string) (string, error) {
	id := newID()
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO job_runs (id, tenant_id, job_type, status, started_at) VALUES (?,?,?,?,?)",
		id, tenantID, jobType, jobs.StatusRunning, utcNow())
	return id, err
}

func (r *JobRecorder) FinishRun(ctx context.Context, runID, status string, details []byte) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE job_runs SET status = ?, details_json = ?, completed_at = ? WHERE id = ?",
		status, nullText(details), utcNow(), runID)
	return err
}

// LastRun returns the status of the latest run of jobType for a tenant.
func (r *JobRecorder) LastRun(ctx context.Context, tenantID, jobType string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `
    SELECT status FROM job_runs WHERE tenant_id = ? AND job_type = ?
    ORDER BY started_at DESC LIMIT 1`, tenantID, jobType).Scan(&status)
	return status, err
}
