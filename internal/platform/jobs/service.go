package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

const (
	JobEscalationSweep = "escalation_sweep"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Recorder persists one row per job run.
type Recorder interface {
	StartRun(ctx context.Context, tenantID, jobType string) (string, error)
	FinishRun(ctx context.Context, runID, status string, details []byte) error
}

type RunFunc func(context.Context) (any, error)

type Service struct {
	Runs  Recorder
	queue chan job
}

type job struct {
	Type     string
	TenantID string
	Run      RunFunc
}

func New(runs Recorder) *Service {
	return &Service{
		Runs:  runs,
		queue: make(chan job, 128),
	}
}

// Start launches the queue worker. It returns immediately.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
}

// Every enqueues jobs produced by plan on each tick until ctx is done.
func (s *Service) Every(ctx context.Context, interval time.Duration, jobType string, plan func(context.Context) ([]string, error), run func(context.Context, string) (any, error)) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tenants, err := plan(ctx)
				if err != nil {
					slog.Warn("job scheduler tenant lookup failed", "jobType", jobType, "err", err)
					continue
				}
				for _, tenantID := range tenants {
					tenant := tenantID
					s.Enqueue(jobType, tenant, func(ctx context.Context) (any, error) {
						return run(ctx, tenant)
					})
				}
			}
		}
	}()
}

func (s *Service) Enqueue(jobType, tenantID string, run RunFunc) bool {
	select {
	case s.queue <- job{Type: jobType, TenantID: tenantID, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, TenantID: tenantID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "tenantId", j.TenantID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.Runs != nil {
		id, err := s.Runs.StartRun(ctx, j.TenantID, j.Type)
		if err != nil {
			slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
		}
		runID = id
	}

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
		details = map[string]any{"error": err.Error(), "result": details}
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.Runs.FinishRun(ctx, runID, status, detailsJSON); updErr != nil {
			slog.Warn("job run update failed", "runId", runID, "err", updErr)
		}
	}
	return details, err
}
