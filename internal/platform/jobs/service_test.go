package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRuns struct {
	mu       sync.Mutex
	started  []string
	finished map[string]string
	details  map[string][]byte
}

func newMemRuns() *memRuns {
	return &memRuns{finished: map[string]string{}, details: map[string][]byte{}}
}

func (m *memRuns) StartRun(_ context.Context, tenantID, jobType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := jobType + ":" + tenantID
	m.started = append(m.started, id)
	return id, nil
}

func (m *memRuns) FinishRun(_ context.Context, runID, status string, details []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[runID] = status
	m.details[runID] = details
	return nil
}

func (m *memRuns) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished[id]
}

func TestRunNowRecordsRun(t *testing.T) {
	runs := newMemRuns()
	svc := New(runs)

	out, err := svc.RunNow(context.Background(), JobEscalationSweep, "t1", func(context.Context) (any, error) {
		return map[string]int{"escalated": 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"escalated": 2}, out)
	assert.Equal(t, StatusCompleted, runs.status("escalation_sweep:t1"))

	var details map[string]int
	require.NoError(t, json.Unmarshal(runs.details["escalation_sweep:t1"], &details))
	assert.Equal(t, 2, details["escalated"])
}

func TestRunNowRecordsFailure(t *testing.T) {
	runs := newMemRuns()
	svc := New(runs)

	_, err := svc.RunNow(context.Background(), JobEscalationSweep, "t1", func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, runs.status("escalation_sweep:t1"))
}

func TestWorkerRunsQueuedJobs(t *testing.T) {
	runs := newMemRuns()
	svc := New(runs)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	done := make(chan struct{})
	require.True(t, svc.Enqueue(JobEscalationSweep, "t2", func(context.Context) (any, error) {
		close(done)
		return nil, nil
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued job did not run")
	}
	assert.Eventually(t, func() bool {
		return runs.status("escalation_sweep:t2") == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEveryEnqueuesPerTenant(t *testing.T) {
	svc := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	var mu sync.Mutex
	seen := map[string]bool{}
	svc.Every(ctx, 10*time.Millisecond, JobEscalationSweep,
		func(context.Context) ([]string, error) { return []string{"a", "b"}, nil },
		func(_ context.Context, tenant string) (any, error) {
			mu.Lock()
			seen[tenant] = true
			mu.Unlock()
			return nil, nil
		})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["a"] && seen["b"]
	}, 2*time.Second, 10*time.Millisecond)
}
