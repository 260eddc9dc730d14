package cli

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"leaveflow/internal/domain/directory"
	"leaveflow/internal/domain/escalation"
	"leaveflow/internal/domain/workflow"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestChainString(t *testing.T) {
	assert.Equal(t, "(none)", chainString(nil))
	chain := workflow.ApprovalChain{{Role: "MANAGER", Required: true}, {Role: "HR", Required: false}}
	assert.Equal(t, "MANAGER → HR?", chainString(chain))
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	writeSummary(&buf, escalation.SweepSummary{TenantID: "t1", Skipped: true, SkipReason: "sweep already running"})
	assert.Equal(t, "SKIPPED t1 (sweep already running)\n", buf.String())

	buf.Reset()
	writeSummary(&buf, escalation.SweepSummary{
		TenantID: "t2",
		Examined: 3,
		Reminded: 1,
		Failures: []escalation.ItemFailure{{ApprovalID: "a1", RequestID: "r1", Error: "boom"}},
	})
	out := buf.String()
	assert.Contains(t, out, "PARTIAL t2 examined=3 reminded=1")
	assert.Contains(t, out, "a1 request=r1: boom")
}

func TestWriteTestResult(t *testing.T) {
	var buf bytes.Buffer
	writeTestResult(&buf, workflow.TestResult{
		Resolution: workflow.Resolution{Fallback: true, Chain: workflow.ChainFromRoles([]string{"MANAGER"})},
		Trace: []workflow.RuleTrace{
			{Name: "long leave", Priority: 10, Active: true, Considered: true, Failed: []workflow.PredicateKind{workflow.KindLeaveTypeIn}},
			{Name: "old", Priority: 5, Active: false},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "(fallback chain)")
	assert.Contains(t, out, "Chain:   MANAGER")
	assert.Contains(t, out, "✗   10 long leave failed: leave_type_in")
	assert.Contains(t, out, "-    5 old (inactive)")
}

func TestActionLabel(t *testing.T) {
	assert.Equal(t, "hold", actionLabel(escalation.ActionHold))
	assert.Equal(t, "reassign", actionLabel(escalation.ActionReassign))
}

func TestParseApprover(t *testing.T) {
	a, err := parseApprover("mgr-1:manager:eng:mgr@acme.test")
	assert.NoError(t, err)
	assert.Equal(t, directory.Approver{UserID: "mgr-1", Role: "MANAGER", Department: "eng", Email: "mgr@acme.test", Active: true}, a)

	a, err = parseApprover("hr-1:HR")
	assert.NoError(t, err)
	assert.Equal(t, "", a.Department)

	_, err = parseApprover("hr-1")
	assert.Error(t, err)
	_, err = parseApprover(":HR")
	assert.Error(t, err)
}
