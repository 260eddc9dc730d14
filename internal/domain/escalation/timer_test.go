package escalation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaveflow/internal/domain/approval"
	"leaveflow/internal/domain/directory"
	"leaveflow/internal/domain/escalation"
	"leaveflow/internal/domain/workflow"
)

func TestTimerWaitsAndReminds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	timer := escalation.Timer{Directory: f.dir}
	cfg := escalation.DefaultConfig()
	a := f.pending(t, "req-1", nil)

	dec, err := timer.Evaluate(ctx, a, cfg, submittedAt.Add(23*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionNone, dec.Action)
	assert.True(t, submittedAt.Add(48*time.Hour).Equal(dec.DueAt))

	dec, err = timer.Evaluate(ctx, a, cfg, submittedAt.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionRemind, dec.Action)
	assert.Equal(t, "mgr-1", dec.ApproverID)

	reminded := submittedAt.Add(24 * time.Hour)
	a.RemindedAt = &reminded
	dec, err = timer.Evaluate(ctx, a, cfg, submittedAt.Add(30*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionNone, dec.Action)

	cfg.ReminderHours = 0
	a.RemindedAt = nil
	dec, err = timer.Evaluate(ctx, a, cfg, submittedAt.Add(47*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionNone, dec.Action)
}

func TestTimerEscalatesAtTimeoutBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approver(t, "mgr-1", "MANAGER")
	f.approver(t, "hr-1", "HR")
	timer := escalation.Timer{Directory: f.dir}
	a := f.pending(t, "req-1", nil)

	dec, err := timer.Evaluate(ctx, a, escalation.DefaultConfig(), submittedAt.Add(48*time.Hour-time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, escalation.ActionEscalate, dec.Action)

	dec, err = timer.Evaluate(ctx, a, escalation.DefaultConfig(), submittedAt.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionEscalate, dec.Action)
	assert.Equal(t, 1, dec.LevelIndex)
	assert.Equal(t, "hr-1", dec.ApproverID)
}

func TestTimerReassignsAbsentApproverOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approver(t, "mgr-1", "MANAGER")
	f.approver(t, "mgr-2", "MANAGER")
	f.approver(t, "hr-1", "HR")
	f.absent(t, "mgr-1", submittedAt, submittedAt.Add(7*24*time.Hour))
	timer := escalation.Timer{Directory: f.dir}
	at := submittedAt.Add(49 * time.Hour)

	a := f.pending(t, "req-1", nil)
	dec, err := timer.Evaluate(ctx, a, escalation.DefaultConfig(), at)
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionReassign, dec.Action)
	assert.Equal(t, "mgr-2", dec.ApproverID)
	assert.Equal(t, directory.ReasonAbsent, dec.Reason)

	a.LevelReassigned = true
	dec, err = timer.Evaluate(ctx, a, escalation.DefaultConfig(), at)
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionEscalate, dec.Action)
	assert.Equal(t, "hr-1", dec.ApproverID)
}

func TestTimerStopsAtMaxEscalations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approver(t, "hr-1", "HR")
	f.approver(t, "dir-1", "DIRECTOR")
	timer := escalation.Timer{Directory: f.dir}
	at := submittedAt.Add(72 * time.Hour)

	a := f.pending(t, "req-1", func(a *approval.Approval) {
		a.CurrentLevelIndex = 1
		a.AssignedApproverID = "hr-1"
		a.EscalationCount = 2
	})

	cfg := escalation.DefaultConfig()
	dec, err := timer.Evaluate(ctx, a, cfg, at)
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionHold, dec.Action)

	cfg.AutoApproveAfterMax = true
	dec, err = timer.Evaluate(ctx, a, cfg, at)
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionAutoApprove, dec.Action)

	cfg.MaxEscalationLevels = 3
	dec, err = timer.Evaluate(ctx, a, cfg, at)
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionEscalate, dec.Action)
	assert.Equal(t, "dir-1", dec.ApproverID)
}

func TestTimerAtLastLevel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approver(t, "dir-1", "DIRECTOR")
	timer := escalation.Timer{Directory: f.dir}

	a := f.pending(t, "req-1", func(a *approval.Approval) {
		a.CurrentLevelIndex = 2
		a.AssignedApproverID = "dir-1"
	})
	cfg := escalation.DefaultConfig()
	cfg.AutoApproveAfterMax = true
	dec, err := timer.Evaluate(ctx, a, cfg, submittedAt.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionAutoApprove, dec.Action)
	assert.Equal(t, "approval chain exhausted", dec.Reason)
}

func TestTimerSkipsOptionalLevelWithoutApprover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approver(t, "dir-1", "DIRECTOR")
	timer := escalation.Timer{Directory: f.dir}

	a := f.pending(t, "req-1", func(a *approval.Approval) {
		a.Chain = workflow.ApprovalChain{
			{Role: "MANAGER", Required: true},
			{Role: "HR", Required: false},
			{Role: "DIRECTOR", Required: true},
		}
	})
	dec, err := timer.Evaluate(ctx, a, escalation.DefaultConfig(), submittedAt.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionEscalate, dec.Action)
	assert.Equal(t, 2, dec.LevelIndex)
	assert.Equal(t, []int{1}, dec.Skipped)
}

func TestTimerRebuildsEmptyChainFromRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.approver(t, "hr-1", "HR")
	rule, err := f.stores.Workflow.CreateRule(ctx, tenant, workflow.Rule{
		Name:           "rule",
		ApprovalLevels: workflow.ChainFromRoles([]string{"MANAGER", "HR"}),
		IsActive:       true,
	})
	require.NoError(t, err)
	timer := escalation.Timer{Directory: f.dir, Rules: f.stores.Workflow}

	a := f.pending(t, "req-1", func(a *approval.Approval) {
		a.Chain = nil
		a.RuleID = rule.ID
	})
	require.Empty(t, a.Chain)
	dec, err := timer.Evaluate(ctx, a, escalation.DefaultConfig(), submittedAt.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, escalation.ActionEscalate, dec.Action)
	assert.Len(t, dec.Chain, 2)

	orphan := f.pending(t, "req-2", func(a *approval.Approval) { a.Chain = nil })
	_, err = timer.Evaluate(ctx, orphan, escalation.DefaultConfig(), submittedAt.Add(48*time.Hour))
	assert.ErrorIs(t, err, escalation.ErrNoChain)
}
