package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaveflow/internal/domain/approval"
	"leaveflow/internal/domain/audit"
	"leaveflow/internal/domain/directory"
	"leaveflow/internal/domain/escalation"
	"leaveflow/internal/domain/notifications"
	"leaveflow/internal/domain/workflow"
	"leaveflow/internal/platform/jobs"
	"leaveflow/internal/store/sqlite"
)

const tenant = "tenant-1"

func setupStores(t *testing.T) *sqlite.Stores {
	t.Helper()
	db, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.NewStores(db)
}

func TestWorkflowStoreKeepsCreationOrder(t *testing.T) {
	ctx := context.Background()
	stores := setupStores(t)

	names := []string{"first", "second", "third"}
	for _, name := range names {
		_, err := stores.Workflow.CreateRule(ctx, tenant, workflow.Rule{
			Name:           name,
			ApprovalLevels: workflow.ChainFromRoles([]string{"MANAGER"}),
			IsActive:       true,
		})
		require.NoError(t, err)
	}
	_, err := stores.Workflow.CreateRule(ctx, "other", workflow.Rule{Name: "elsewhere", IsActive: true})
	require.NoError(t, err)

	rules, err := stores.Workflow.ListRules(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	for i, rule := range rules {
		assert.Equal(t, names[i], rule.Name)
		assert.Equal(t, "MANAGER", rule.ApprovalLevels[0].Role)
	}
}

func TestWorkflowStoreUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	stores := setupStores(t)

	gt := decimal.NewFromInt(5)
	created, err := stores.Workflow.CreateRule(ctx, tenant, workflow.Rule{
		Name:           "long leave",
		Conditions:     workflow.Conditions{DaysGreaterThan: &gt, LeaveTypes: []string{"ANNUAL"}},
		ApprovalLevels: workflow.ChainFromRoles([]string{"MANAGER", "HR"}),
		Priority:       10,
		IsActive:       true,
	})
	require.NoError(t, err)

	created.Priority = 20
	updated, err := stores.Workflow.UpdateRule(ctx, tenant, created)
	require.NoError(t, err)
	assert.Equal(t, 20, updated.Priority)
	require.NotNil(t, updated.Conditions.DaysGreaterThan)
	assert.True(t, gt.Equal(*updated.Conditions.DaysGreaterThan))

	inactive, err := stores.Workflow.SetActive(ctx, tenant, created.ID, false)
	require.NoError(t, err)
	assert.False(t, inactive.IsActive)

	_, err = stores.Workflow.GetRule(ctx, "other", created.ID)
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	require.NoError(t, stores.Workflow.DeleteRule(ctx, tenant, created.ID))
	assert.ErrorIs(t, stores.Workflow.DeleteRule(ctx, tenant, created.ID), workflow.ErrNotFound)
}

func newApproval(requestID string) approval.Approval {
	return approval.Approval{
		TenantID:           tenant,
		RequestID:          requestID,
		RequesterID:        "emp-1",
		RequesterRole:      "EMPLOYEE",
		LeaveTypeCode:      "ANNUAL",
		DayCount:           decimal.RequireFromString("2.5"),
		Chain:              workflow.ChainFromRoles([]string{"MANAGER", "HR"}),
		AssignedApproverID: "mgr-1",
		EnteredAt:          time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Status:             approval.StatusPending,
	}
}

func TestApprovalStoreCreateRejectsDuplicateRequest(t *testing.T) {
	ctx := context.Background()
	stores := setupStores(t)

	created, err := stores.Approvals.Create(ctx, newApproval("req-1"), []approval.Event{{Type: approval.EventSubmitted, ActorID: "emp-1"}})
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)
	assert.True(t, decimal.RequireFromString("2.5").Equal(created.DayCount))
	assert.Len(t, created.Chain, 2)

	_, err = stores.Approvals.Create(ctx, newApproval("req-1"), nil)
	assert.ErrorIs(t, err, approval.ErrDuplicateRequest)

	byRequest, err := stores.Approvals.GetByRequest(ctx, tenant, "req-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byRequest.ID)
}

func TestApprovalStoreTransitionChecksVersion(t *testing.T) {
	ctx := context.Background()
	stores := setupStores(t)

	created, err := stores.Approvals.Create(ctx, newApproval("req-1"), nil)
	require.NoError(t, err)

	next := created
	next.CurrentLevelIndex = 1
	next.AssignedApproverID = "hr-1"
	next.EscalationCount = 1
	updated, err := stores.Approvals.Transition(ctx, next, created.Version, []approval.Event{
		{Type: approval.EventEscalated, ActorID: approval.SystemActor, LevelIndex: 1, ToApprover: "hr-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "hr-1", updated.AssignedApproverID)

	_, err = stores.Approvals.Transition(ctx, next, created.Version, nil)
	assert.ErrorIs(t, err, approval.ErrConflict)

	events, err := stores.Approvals.Events(ctx, tenant, created.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, approval.EventEscalated, events[0].Type)
}

func TestApprovalStorePendingQueries(t *testing.T) {
	ctx := context.Background()
	stores := setupStores(t)

	later := newApproval("req-late")
	later.EnteredAt = later.EnteredAt.Add(time.Hour)
	later.RuleID = "rule-1"
	_, err := stores.Approvals.Create(ctx, later, nil)
	require.NoError(t, err)
	early := newApproval("req-early")
	early.RuleID = "rule-1"
	_, err = stores.Approvals.Create(ctx, early, nil)
	require.NoError(t, err)
	done := newApproval("req-done")
	done.Status = approval.StatusApproved
	done.TenantID = "other"
	_, err = stores.Approvals.Create(ctx, done, nil)
	require.NoError(t, err)

	pending, err := stores.Approvals.ListPending(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "req-early", pending[0].RequestID)

	open, err := stores.Approvals.CountOpenByRule(ctx, tenant, "rule-1")
	require.NoError(t, err)
	assert.Equal(t, 2, open)

	tenants, err := stores.Approvals.TenantsWithPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{tenant}, tenants)

	require.NoError(t, stores.Approvals.RecordFailure(ctx, tenant, pending[0].ID, "boom"))
	failed, err := stores.Approvals.Get(ctx, tenant, pending[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "boom", failed.LastError)
	assert.Equal(t, pending[0].Version, failed.Version)

	list, err := stores.Approvals.List(ctx, tenant, approval.ListFilter{AssigneeID: "mgr-1", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Items, 1)
}

func TestDirectoryStoreDelegationsAndAbsences(t *testing.T) {
	ctx := context.Background()
	stores := setupStores(t)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	_, err := stores.Directory.UpsertApprover(ctx, tenant, directory.Approver{UserID: "mgr-any", Role: "MANAGER", Active: true})
	require.NoError(t, err)
	_, err = stores.Directory.UpsertApprover(ctx, tenant, directory.Approver{UserID: "mgr-eng", Role: "MANAGER", Department: "Engineering", Email: "eng@example.com", Active: true})
	require.NoError(t, err)
	_, err = stores.Directory.UpsertApprover(ctx, tenant, directory.Approver{UserID: "mgr-off", Role: "MANAGER", Active: false})
	require.NoError(t, err)

	approvers, err := stores.Directory.ApproversForRole(ctx, tenant, "MANAGER", "engineering")
	require.NoError(t, err)
	require.Len(t, approvers, 2)
	assert.Equal(t, "mgr-eng", approvers[0].UserID)
	assert.Equal(t, "mgr-any", approvers[1].UserID)

	email, err := stores.Directory.ApproverEmail(ctx, tenant, "mgr-eng")
	require.NoError(t, err)
	assert.Equal(t, "eng@example.com", email)

	d, err := stores.Directory.CreateDelegation(ctx, tenant, directory.Delegation{
		DelegatorID: "mgr-eng", DelegateID: "mgr-any",
		StartsAt: at.Add(-time.Hour), EndsAt: at.Add(time.Hour),
	})
	require.NoError(t, err)
	active, err := stores.Directory.ActiveDelegations(ctx, tenant, "mgr-eng", at)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "mgr-any", active[0].DelegateID)

	expired, err := stores.Directory.ActiveDelegations(ctx, tenant, "mgr-eng", at.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, expired)

	require.NoError(t, stores.Directory.RevokeDelegation(ctx, tenant, d.ID, at.Add(-time.Minute)))
	assert.ErrorIs(t, stores.Directory.RevokeDelegation(ctx, tenant, d.ID, at), directory.ErrNotFound)
	revoked, err := stores.Directory.ActiveDelegations(ctx, tenant, "mgr-eng", at)
	require.NoError(t, err)
	assert.Empty(t, revoked)

	_, err = stores.Directory.CreateAbsence(ctx, tenant, directory.Absence{UserID: "mgr-eng", StartsAt: at.Add(-24 * time.Hour), EndsAt: at})
	require.NoError(t, err)
	absent, err := stores.Directory.IsAbsent(ctx, tenant, "mgr-eng", at.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, absent)
	absent, err = stores.Directory.IsAbsent(ctx, tenant, "mgr-eng", at)
	require.NoError(t, err)
	assert.False(t, absent)
}

func TestEscalationStoreUpsert(t *testing.T) {
	ctx := context.Background()
	stores := setupStores(t)

	_, found, err := stores.Escalation.GetConfig(ctx, tenant)
	require.NoError(t, err)
	assert.False(t, found)

	cfg := escalation.DefaultConfig()
	cfg.EscalationTimeoutHours = 12
	_, err = stores.Escalation.SaveConfig(ctx, tenant, cfg)
	require.NoError(t, err)
	cfg.AutoApproveAfterMax = true
	_, err = stores.Escalation.SaveConfig(ctx, tenant, cfg)
	require.NoError(t, err)

	stored, found, err := stores.Escalation.GetConfig(ctx, tenant)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 12, stored.EscalationTimeoutHours)
	assert.True(t, stored.AutoApproveAfterMax)
	assert.NotNil(t, stored.UpdatedAt)
}

func TestNotificationStore(t *testing.T) {
	ctx := context.Background()
	stores := setupStores(t)

	require.NoError(t, stores.Notifications.CreateNotification(ctx, tenant, "mgr-1", notifications.TypeApprovalRequested, "t", "b"))
	require.NoError(t, stores.Notifications.CreateNotification(ctx, tenant, "mgr-1", notifications.TypeApprovalEscalated, "t2", "b2"))
	require.NoError(t, stores.Notifications.CreateNotification(ctx, tenant, "mgr-1", notifications.TypeApprovalEscalated, "t3", "b3"))
	items, err := stores.Notifications.ListNotifications(ctx, tenant, "mgr-1", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Nil(t, items[0].ReadAt)

	require.NoError(t, stores.Notifications.MarkRead(ctx, tenant, "mgr-1", items[0].ID))
	assert.ErrorIs(t, stores.Notifications.MarkRead(ctx, tenant, "someone-else", items[0].ID), notifications.ErrNotFound)

	unread, err := stores.Notifications.CountNotifications(ctx, tenant, "mgr-1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)
	unreadItems, err := stores.Notifications.ListNotifications(ctx, tenant, "mgr-1", true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, unreadItems, 2)

	changed, err := stores.Notifications.MarkAllRead(ctx, tenant, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	changed, err = stores.Notifications.MarkAllRead(ctx, tenant, "mgr-1")
	require.NoError(t, err)
	assert.Zero(t, changed)
	total, err := stores.Notifications.CountNotifications(ctx, tenant, "mgr-1", false)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	settings, err := stores.Notifications.EmailSettings(ctx, tenant)
	require.NoError(t, err)
	assert.False(t, settings.EmailEnabled)
	require.NoError(t, stores.Notifications.UpdateSettings(ctx, tenant, notifications.Settings{EmailEnabled: true, EmailFrom: "hr@example.com"}))
	settings, err = stores.Notifications.EmailSettings(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, notifications.Settings{EmailEnabled: true, EmailFrom: "hr@example.com"}, settings)
}

func TestAuditStoreFiltersAndDetails(t *testing.T) {
	ctx := context.Background()
	stores := setupStores(t)
	svc := audit.New(stores.Audit)

	require.NoError(t, svc.Record(ctx, tenant, "hr-1", audit.ActionRuleCreate, "workflow_rule", "r1", "req", "127.0.0.1", nil, map[string]string{"name": "x"}))
	require.NoError(t, svc.Record(ctx, tenant, "hr-1", audit.ActionRuleDelete, "workflow_rule", "r1", "req", "127.0.0.1", map[string]string{"name": "x"}, nil))

	total, err := svc.Count(ctx, tenant, audit.Filter{Action: audit.ActionRuleCreate})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	events, err := svc.List(ctx, tenant, audit.Filter{}, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionRuleDelete, events[0].Action)
	assert.JSONEq(t, `{"name":"x"}`, string(events[0].Before))
	assert.Empty(t, events[0].After)
}

func TestJobRecorder(t *testing.T) {
	ctx := context.Background()
	stores := setupStores(t)

	runID, err := stores.Jobs.StartRun(ctx, tenant, jobs.JobEscalationSweep)
	require.NoError(t, err)
	require.NoError(t, stores.Jobs.FinishRun(ctx, runID, jobs.StatusCompleted, []byte(`{"examined":0}`)))

	status, err := stores.Jobs.LastRun(ctx, tenant, jobs.JobEscalationSweep)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, status)

	_, err = stores.Jobs.LastRun(ctx, "other", jobs.JobEscalationSweep)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
