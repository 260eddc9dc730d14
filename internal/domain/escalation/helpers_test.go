package escalation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"leaveflow/internal/domain/approval"
	"leaveflow/internal/domain/directory"
	"leaveflow/internal/domain/notifications"
	"leaveflow/internal/domain/workflow"
	"leaveflow/internal/store/sqlite"
)

const tenant = "tenant-1"

var submittedAt = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	err    error
}

func (r *recordingNotifier) Notify(_ context.Context, ev notifications.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingNotifier) all() []notifications.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...)
}

type fixture struct {
	stores *sqlite.Stores
	dir    *directory.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	stores := sqlite.NewStores(db)
	return &fixture{stores: stores, dir: directory.NewService(stores.Directory)}
}

func (f *fixture) approver(t *testing.T, userID, role string) {
	t.Helper()
	_, err := f.dir.SaveApprover(context.Background(), tenant, directory.Approver{UserID: userID, Role: role, Active: true})
	require.NoError(t, err)
}

func (f *fixture) absent(t *testing.T, userID string, from, to time.Time) {
	t.Helper()
	_, err := f.dir.CreateAbsence(context.Background(), tenant, directory.Absence{UserID: userID, StartsAt: from, EndsAt: to})
	require.NoError(t, err)
}

// pending stores a PENDING approval on the MANAGER > HR > DIRECTOR chain.
func (f *fixture) pending(t *testing.T, requestID string, mutate func(*approval.Approval)) approval.Approval {
	t.Helper()
	a := approval.Approval{
		TenantID:           tenant,
		RequestID:          requestID,
		RequesterID:        "emp-1",
		RequesterRole:      "EMPLOYEE",
		LeaveTypeCode:      "ANNUAL",
		DayCount:           decimal.NewFromInt(3),
		Chain:              workflow.ChainFromRoles([]string{"MANAGER", "HR", "DIRECTOR"}),
		AssignedApproverID: "mgr-1",
		EnteredAt:          submittedAt,
		Status:             approval.StatusPending,
	}
	if mutate != nil {
		mutate(&a)
	}
	created, err := f.stores.Approvals.Create(context.Background(), a, []approval.Event{{Type: approval.EventSubmitted, ActorID: a.RequesterID}})
	require.NoError(t, err)
	return created
}
